// Package content holds the content and content-version entities and the
// per-evaluation CustomContentVersion view the activation pipeline works on.
package content

import (
	"encoding/json"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/domain/session"
)

// ContentType distinguishes the kinds of in-app content.
type ContentType string

const (
	TypeFlow      ContentType = "flow"
	TypeChecklist ContentType = "checklist"
	TypeSurvey    ContentType = "survey"
)

// Content is the authored piece of in-app content.
type Content struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      ContentType `json:"type"`
	ProjectID string      `json:"projectId"`
}

// VersionConfig is the per-version activation configuration.
type VersionConfig struct {
	AutoStartEnabled     bool `json:"autoStartEnabled"`
	HideRulesEnabled     bool `json:"hideRulesEnabled"`
	Priority             int  `json:"priority"`
	WaitSeconds          int  `json:"waitSeconds,omitempty"`
	AutoStartOncePerUser bool `json:"autoStartOncePerUser,omitempty"`
}

// ContentVersion is one immutable revision of a piece of content.
type ContentVersion struct {
	ID             string            `json:"id"`
	ContentID      string            `json:"contentId"`
	Sequence       int               `json:"sequence"`
	Config         VersionConfig     `json:"config"`
	AutoStartRules []rules.Condition `json:"autoStartRules,omitempty"`
	HideRules      []rules.Condition `json:"hideRules,omitempty"`
	Steps          json.RawMessage   `json:"steps,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// ContentOnEnvironment records which version of a piece of content is
// published on an environment.
type ContentOnEnvironment struct {
	ContentID          string    `json:"contentId"`
	EnvironmentID      string    `json:"environmentId"`
	PublishedVersionID string    `json:"publishedVersionId"`
	Published          bool      `json:"published"`
	PublishedAt        time.Time `json:"publishedAt"`
}

// CustomContentVersion is the evaluation-time view of one published version
// for one user: the version and its parent content joined with the user's
// latest session and the evaluator's annotations. Built per request, never
// persisted.
type CustomContentVersion struct {
	Version       *ContentVersion     `json:"version"`
	Content       *Content            `json:"content"`
	LatestSession *session.BizSession `json:"latestSession,omitempty"`

	// Evaluator annotations.
	Actived bool `json:"actived"`
	Hidden  bool `json:"hidden"`
}

// HasActiveSession reports whether the user's latest session for this
// content is still running.
func (v *CustomContentVersion) HasActiveSession() bool {
	return v.LatestSession != nil && !v.LatestSession.Ended()
}

// HasSeen reports whether the user ever started this content.
func (v *CustomContentVersion) HasSeen() bool {
	return v.LatestSession != nil
}

// HasCompleted reports whether the user's latest session ended.
func (v *CustomContentVersion) HasCompleted() bool {
	return v.LatestSession != nil && v.LatestSession.Ended()
}
