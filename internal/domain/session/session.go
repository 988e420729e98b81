// Package session holds the session, event and answer entities plus the
// event-name vocabulary the tracking state machine is built on.
package session

import "time"

// Session states. State is monotonic: once ended a session never accepts
// another event.
const (
	StateActive = 0
	StateEnded  = 1
)

// BizSession is one run of a piece of content for one user.
type BizSession struct {
	ID        string    `json:"id"`
	ContentID string    `json:"contentId"`
	VersionID string    `json:"versionId"`
	BizUserID string    `json:"bizUserId"`
	State     int       `json:"state"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ended reports whether the session has reached its terminal state.
func (s *BizSession) Ended() bool {
	return s != nil && s.State == StateEnded
}

// BizEvent is an append-only record of something the user did inside a
// session. Data holds only fields recognized by the event's schema.
type BizEvent struct {
	ID           string         `json:"id"`
	BizUserID    string         `json:"bizUserId"`
	EventID      string         `json:"eventId"`
	BizSessionID string         `json:"bizSessionId"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// BizAnswer is the structured answer row written alongside a
// question-answered event. Exactly one of the answer fields is set.
type BizAnswer struct {
	ID           string    `json:"id"`
	BizEventID   string    `json:"bizEventId"`
	ContentID    string    `json:"contentId"`
	VersionID    string    `json:"versionId"`
	QuestionID   string    `json:"questionId"`
	NumberAnswer *float64  `json:"numberAnswer,omitempty"`
	TextAnswer   *string   `json:"textAnswer,omitempty"`
	ListAnswer   []string  `json:"listAnswer,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Event is the project-level definition of a trackable event and the
// attribute code names its payload may carry.
type Event struct {
	ID             string   `json:"id"`
	CodeName       string   `json:"codeName"`
	ProjectID      string   `json:"projectId"`
	AttributeCodes []string `json:"attributeCodes,omitempty"`
}
