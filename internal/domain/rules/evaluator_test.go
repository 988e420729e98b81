package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustData(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func userAttrCond(t *testing.T, logic Logic, attrID, cmp, value string) Condition {
	t.Helper()
	return Condition{
		Type:      TypeUserAttribute,
		Operators: logic,
		Data:      mustData(t, AttributeData{AttrID: attrID, Logic: cmp, Value: value}),
	}
}

func TestEvaluateEmptyListIsTrue(t *testing.T) {
	assert.True(t, Evaluate(nil, &EvalContext{TypeControl: FullTypeControl()}))
	assert.True(t, Evaluate([]Condition{}, &EvalContext{TypeControl: FullTypeControl()}))
}

func TestEvaluateMissingAttributeIsFalse(t *testing.T) {
	conds := []Condition{userAttrCond(t, LogicAnd, "attr-plan", LogicIs, "pro")}

	assert.False(t, Evaluate(conds, &EvalContext{TypeControl: FullTypeControl()}))
	assert.False(t, Evaluate(conds, &EvalContext{
		UserAttributes: map[string]any{"other": "pro"},
		TypeControl:    FullTypeControl(),
	}))
}

func TestEvaluateAndShortCircuit(t *testing.T) {
	conds := []Condition{
		userAttrCond(t, LogicAnd, "attr-plan", LogicIs, "free"),
		// Malformed payload would be false anyway, but AND must already
		// have stopped at the first sibling.
		{Type: TypeUserAttribute, Operators: LogicAnd, Data: json.RawMessage(`{invalid`)},
	}
	ctx := &EvalContext{
		UserAttributes: map[string]any{"attr-plan": "pro"},
		TypeControl:    FullTypeControl(),
	}
	assert.False(t, Evaluate(conds, ctx))
}

func TestEvaluateOrShortCircuit(t *testing.T) {
	conds := []Condition{
		userAttrCond(t, LogicOr, "attr-plan", LogicIs, "pro"),
		{Type: TypeUserAttribute, Operators: LogicOr, Data: json.RawMessage(`{invalid`)},
	}
	ctx := &EvalContext{
		UserAttributes: map[string]any{"attr-plan": "pro"},
		TypeControl:    FullTypeControl(),
	}
	assert.True(t, Evaluate(conds, ctx))
}

func TestEvaluateNestedGroups(t *testing.T) {
	// (plan == "pro" AND (signups < 10 OR in segment "beta"))
	conds := []Condition{
		userAttrCond(t, LogicAnd, "attr-plan", LogicIs, "pro"),
		{
			Type:      TypeGroup,
			Operators: LogicAnd,
			Conditions: []Condition{
				{
					Type:      TypeUserAttribute,
					Operators: LogicOr,
					Data:      mustData(t, AttributeData{AttrID: "attr-signups", Logic: LogicLessThan, Value: "10"}),
				},
				{
					Type:      TypeSegment,
					Operators: LogicOr,
					Data:      mustData(t, SegmentData{SegmentID: "seg-beta", Logic: "in"}),
				},
			},
		},
	}

	ctx := &EvalContext{
		UserAttributes: map[string]any{"attr-plan": "pro", "attr-signups": float64(42)},
		Segments:       map[string]bool{"seg-beta": true},
		TypeControl:    FullTypeControl(),
	}
	assert.True(t, Evaluate(conds, ctx))

	ctx.Segments["seg-beta"] = false
	assert.False(t, Evaluate(conds, ctx))

	ctx.UserAttributes["attr-signups"] = float64(5)
	assert.True(t, Evaluate(conds, ctx))
}

func TestEvaluateSegmentNotIn(t *testing.T) {
	cond := Condition{
		Type: TypeSegment,
		Data: mustData(t, SegmentData{SegmentID: "seg-churned", Logic: "notIn"}),
	}
	assert.True(t, Evaluate([]Condition{cond}, &EvalContext{TypeControl: FullTypeControl()}))
	assert.False(t, Evaluate([]Condition{cond}, &EvalContext{
		Segments:    map[string]bool{"seg-churned": true},
		TypeControl: FullTypeControl(),
	}))
}

func TestEvaluateContentStates(t *testing.T) {
	seen := Condition{Type: TypeContent, Data: mustData(t, ContentData{ContentID: "content-1", Logic: "seen"})}
	completed := Condition{Type: TypeContent, Data: mustData(t, ContentData{ContentID: "content-1", Logic: "completed"})}

	ctx := &EvalContext{
		ContentStates: map[string]ContentState{"content-1": {Seen: true}},
		TypeControl:   FullTypeControl(),
	}
	assert.True(t, Evaluate([]Condition{seen}, ctx))
	assert.False(t, Evaluate([]Condition{completed}, ctx))
}

func TestEvaluateCurrentPageFromClientContext(t *testing.T) {
	cond := Condition{
		Type: TypeCurrentPage,
		Data: mustData(t, CurrentPageData{Logic: LogicStartsWith, Value: "https://app.example.com/settings"}),
	}

	// No reported page: unsatisfied, not an error.
	assert.False(t, Evaluate([]Condition{cond}, &EvalContext{TypeControl: FullTypeControl()}))

	ctx := &EvalContext{
		Client:      &ClientContext{PageURL: "https://app.example.com/settings/billing"},
		TypeControl: FullTypeControl(),
	}
	assert.True(t, Evaluate([]Condition{cond}, ctx))
}

func TestEvaluateTypeControlSkipsDisabledFamilies(t *testing.T) {
	page := Condition{
		Type:      TypeCurrentPage,
		Operators: LogicAnd,
		Data:      mustData(t, CurrentPageData{Logic: LogicIs, Value: "https://app.example.com/home"}),
	}
	attr := userAttrCond(t, LogicAnd, "attr-plan", LogicIs, "pro")

	ctx := &EvalContext{
		UserAttributes: map[string]any{"attr-plan": "pro"},
		TypeControl:    TypeControl{CurrentPage: false, Time: true},
	}

	// The page leaf cannot be re-derived and is skipped; the attribute leaf
	// decides the result alone.
	assert.True(t, Evaluate([]Condition{page, attr}, ctx))

	// A list of only skipped leaves behaves like an empty list.
	assert.True(t, Evaluate([]Condition{page}, ctx))
}

func TestEvaluateKnownConditionIDsShortCircuit(t *testing.T) {
	cond := Condition{
		ID:   "cond-banner-visible",
		Type: TypeElement,
		Data: mustData(t, ElementData{Selector: "#banner", Logic: "present"}),
	}

	activated := &EvalContext{
		ActivatedIDs: map[string]bool{"cond-banner-visible": true},
		TypeControl:  FullTypeControl(),
	}
	assert.True(t, Evaluate([]Condition{cond}, activated))

	deactivated := &EvalContext{
		DeactivatedIDs: map[string]bool{"cond-banner-visible": true},
		Client: &ClientContext{Elements: map[string]*ElementState{
			"#banner": {Present: true},
		}},
		TypeControl: FullTypeControl(),
	}
	assert.False(t, Evaluate([]Condition{cond}, deactivated))
}

func TestEvaluateElementAndTextFromClientContext(t *testing.T) {
	clicked := Condition{Type: TypeElement, Data: mustData(t, ElementData{Selector: "#cta", Logic: "clicked"})}
	filled := Condition{Type: TypeTextFill, Data: mustData(t, TextData{Selector: "#name"})}
	task := Condition{Type: TypeTaskIsClicked, Data: mustData(t, TaskClickedData{TaskID: "task-invite"})}

	ctx := &EvalContext{
		Client: &ClientContext{
			Elements:   map[string]*ElementState{"#cta": {Present: true, Clicked: true}},
			Inputs:     map[string]string{"#name": "Ada"},
			TaskClicks: map[string]bool{"task-invite": true},
		},
		TypeControl: FullTypeControl(),
	}

	assert.True(t, Evaluate([]Condition{clicked}, ctx))
	assert.True(t, Evaluate([]Condition{filled}, ctx))
	assert.True(t, Evaluate([]Condition{task}, ctx))
}

func TestEvaluateRelativeDateAttribute(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cond := Condition{
		Type: TypeUserAttribute,
		Data: mustData(t, AttributeData{AttrID: "attr-signed-up", Logic: LogicRelLessThan, Value: "7"}),
	}

	recent := &EvalContext{
		UserAttributes: map[string]any{"attr-signed-up": now.AddDate(0, 0, -3).Format(time.RFC3339)},
		TypeControl:    FullTypeControl(),
		Now:            now,
	}
	assert.True(t, Evaluate([]Condition{cond}, recent))

	old := &EvalContext{
		UserAttributes: map[string]any{"attr-signed-up": now.AddDate(0, 0, -30).Format(time.RFC3339)},
		TypeControl:    FullTypeControl(),
		Now:            now,
	}
	assert.False(t, Evaluate([]Condition{cond}, old))
}

func TestEvaluateMalformedPayloadIsFalse(t *testing.T) {
	conds := []Condition{
		{Type: TypeUserAttribute, Data: json.RawMessage(`{"attrId": 42}`)},
		{Type: TypeSegment},
		{Type: ConditionType("unknown-kind")},
	}
	for _, c := range conds {
		assert.False(t, Evaluate([]Condition{c}, &EvalContext{TypeControl: FullTypeControl()}))
	}
}

func TestCollectClientConditions(t *testing.T) {
	conds := []Condition{
		userAttrCond(t, LogicAnd, "attr-plan", LogicIs, "pro"),
		{
			Type: TypeGroup,
			Conditions: []Condition{
				{ID: "c1", Type: TypeCurrentPage, Data: mustData(t, CurrentPageData{Logic: LogicIs, Value: "/home"})},
				{ID: "c2", Type: TypeElement, Data: mustData(t, ElementData{Selector: "#x", Logic: "present"})},
			},
		},
		{ID: "c3", Type: TypeWait, Data: mustData(t, WaitData{Seconds: 5})},
	}

	collected := CollectClientConditions(conds)
	require.Len(t, collected, 3)
	assert.Equal(t, "c1", collected[0].ID)
	assert.Equal(t, "c2", collected[1].ID)
	assert.Equal(t, "c3", collected[2].ID)

	assert.True(t, HasClientConditions(conds))
	assert.False(t, HasClientConditions([]Condition{userAttrCond(t, LogicAnd, "a", LogicIs, "b")}))
}
