// Package rules provides the condition tree model and its evaluator. A
// condition tree is an arbitrary boolean expression of typed predicates that
// gates content activation and visibility.
package rules

import (
	"encoding/json"
	"fmt"
)

// Logic is the combinator shared by a list of sibling conditions.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// ConditionType selects the predicate kind of a leaf, or "group" for a
// nested sub-expression.
type ConditionType string

const (
	TypeGroup            ConditionType = "group"
	TypeUserAttribute    ConditionType = "user-attr"
	TypeCompanyAttribute ConditionType = "company-attr"
	TypeCurrentPage      ConditionType = "current-page"
	TypeSegment          ConditionType = "segment"
	TypeContent          ConditionType = "content"
	TypeElement          ConditionType = "element"
	TypeTextInput        ConditionType = "text-input"
	TypeTextFill         ConditionType = "text-fill"
	TypeTime             ConditionType = "time"
	TypeTaskIsClicked    ConditionType = "task-is-clicked"
	TypeWait             ConditionType = "wait"
)

// Condition is a node in the rule tree. A leaf carries a typed payload in
// Data; a group carries nested Conditions. Within one sibling list the
// Operators value is uniform (the authoring UI propagates a single choice
// to every sibling).
type Condition struct {
	ID         string          `json:"id,omitempty"`
	Type       ConditionType   `json:"type"`
	Operators  Logic           `json:"operators"`
	Data       json.RawMessage `json:"data,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
}

// IsGroup reports whether this condition is a nested sub-expression.
func (c *Condition) IsGroup() bool {
	return c.Type == TypeGroup
}

// IsClientSide reports whether this condition's truth depends on state only
// the client can observe (page URL, DOM elements, input values, task clicks,
// elapsed wait).
func (c *Condition) IsClientSide() bool {
	switch c.Type {
	case TypeCurrentPage, TypeElement, TypeTextInput, TypeTextFill, TypeTaskIsClicked, TypeWait:
		return true
	}
	return false
}

// TrackCondition records, per content version, whether a previously tracked
// client-side condition is currently satisfied on the client.
type TrackCondition struct {
	Condition Condition `json:"condition"`
	Actived   bool      `json:"actived"`
}

// AttributeData is the payload for user-attr and company-attr leaves.
type AttributeData struct {
	AttrID     string   `json:"attrId"`
	Logic      string   `json:"logic"`
	Value      string   `json:"value,omitempty"`
	Value2     string   `json:"value2,omitempty"`
	ListValues []string `json:"listValues,omitempty"`
}

// CurrentPageData is the payload for current-page leaves.
type CurrentPageData struct {
	Logic string `json:"logic"`
	Value string `json:"value"`
}

// SegmentData is the payload for segment leaves.
type SegmentData struct {
	SegmentID string `json:"segmentId"`
	Logic     string `json:"logic"` // "in" or "notIn"
}

// ContentData is the payload for content leaves, gating on the state of
// another piece of content for this user.
type ContentData struct {
	ContentID string `json:"contentId"`
	Logic     string `json:"logic"` // "seen", "unseen", "completed", "uncompleted", "actived"
}

// ElementData is the payload for element leaves.
type ElementData struct {
	Selector string `json:"selector"`
	Logic    string `json:"logic"` // "present", "unpresent", "clicked", "disabled"
}

// TextData is the payload for text-input and text-fill leaves.
type TextData struct {
	Selector string `json:"selector"`
	Logic    string `json:"logic"`
	Value    string `json:"value,omitempty"`
}

// TimeData is the payload for time leaves. Relative logics compare against
// a day offset from now; absolute logics compare against StartDate/EndDate.
type TimeData struct {
	Logic     string `json:"logic"`
	Days      int    `json:"days,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// TaskClickedData is the payload for task-is-clicked leaves.
type TaskClickedData struct {
	TaskID string `json:"taskId"`
}

// WaitData is the payload for wait leaves.
type WaitData struct {
	Seconds int `json:"seconds"`
}

func decodePayload[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("condition payload is empty")
	}
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode condition payload: %w", err)
	}
	return &payload, nil
}

// AttributePayload decodes the payload of a user-attr or company-attr leaf.
func (c *Condition) AttributePayload() (*AttributeData, error) {
	return decodePayload[AttributeData](c.Data)
}

// CurrentPagePayload decodes the payload of a current-page leaf.
func (c *Condition) CurrentPagePayload() (*CurrentPageData, error) {
	return decodePayload[CurrentPageData](c.Data)
}

// SegmentPayload decodes the payload of a segment leaf.
func (c *Condition) SegmentPayload() (*SegmentData, error) {
	return decodePayload[SegmentData](c.Data)
}

// ContentPayload decodes the payload of a content leaf.
func (c *Condition) ContentPayload() (*ContentData, error) {
	return decodePayload[ContentData](c.Data)
}

// ElementPayload decodes the payload of an element leaf.
func (c *Condition) ElementPayload() (*ElementData, error) {
	return decodePayload[ElementData](c.Data)
}

// TextPayload decodes the payload of a text-input or text-fill leaf.
func (c *Condition) TextPayload() (*TextData, error) {
	return decodePayload[TextData](c.Data)
}

// TimePayload decodes the payload of a time leaf.
func (c *Condition) TimePayload() (*TimeData, error) {
	return decodePayload[TimeData](c.Data)
}

// TaskClickedPayload decodes the payload of a task-is-clicked leaf.
func (c *Condition) TaskClickedPayload() (*TaskClickedData, error) {
	return decodePayload[TaskClickedData](c.Data)
}

// WaitPayload decodes the payload of a wait leaf.
func (c *Condition) WaitPayload() (*WaitData, error) {
	return decodePayload[WaitData](c.Data)
}
