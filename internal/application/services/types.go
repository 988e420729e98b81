// Package services contains the application services that orchestrate the
// content activation pipeline, event tracking and client context handling.
package services

import (
	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/domain/session"
)

// ContentStartInput is everything a start request carries.
type ContentStartInput struct {
	ExternalUserID string               `json:"externalUserId"`
	ContentID      string               `json:"contentId,omitempty"`
	ContentType    content.ContentType  `json:"contentType,omitempty"`
	ClientContext  *rules.ClientContext `json:"clientContext,omitempty"`
	StartReason    string               `json:"startReason,omitempty"`
}

// SDKSession is the session view handed back to the SDK after activation.
type SDKSession struct {
	ID         string           `json:"id"`
	ContentID  string           `json:"contentId"`
	VersionID  string           `json:"versionId"`
	State      int              `json:"state"`
	Progress   int              `json:"progress"`
	Content    *content.Content `json:"content,omitempty"`
	Steps      any              `json:"steps,omitempty"`
	NewSession bool             `json:"newSession"`
}

// ContentTrackConditions groups the client-side conditions of one content
// version the SDK must keep watching.
type ContentTrackConditions struct {
	ContentID  string                 `json:"contentId"`
	VersionID  string                 `json:"versionId"`
	Conditions []rules.TrackCondition `json:"conditions"`
}

// ContentStartResult is the outcome of the activation pipeline. A failed
// activation is an expected result, not an error.
type ContentStartResult struct {
	Success          bool                     `json:"success"`
	Reason           string                   `json:"reason,omitempty"`
	Session          *SDKSession              `json:"session,omitempty"`
	InvalidSessionID string                   `json:"invalidSessionId,omitempty"`
	TrackConditions  []ContentTrackConditions `json:"trackConditions,omitempty"`
}

// TrackEventInput is everything a track request carries.
type TrackEventInput struct {
	ExternalUserID string         `json:"externalUserId"`
	SessionID      string         `json:"sessionId"`
	EventCodeName  string         `json:"eventName"`
	Data           map[string]any `json:"data,omitempty"`
}

// Answer payload fields recognized inside question_answered event data.
const (
	answerFieldQuestionID = "question_id"
	answerFieldNumber     = "number_answer"
	answerFieldText       = "text_answer"
	answerFieldList       = "list_answer"
)

// startEventName picks the start event for a content type.
func startEventName(t content.ContentType) string {
	if t == content.TypeChecklist {
		return session.EventChecklistStarted
	}
	return session.EventFlowStarted
}
