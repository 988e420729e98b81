package rules

import (
	"time"
)

// ContentState summarizes what this user has done with one piece of content,
// used by content leaves that gate on other content.
type ContentState struct {
	Seen      bool
	Completed bool
	Actived   bool
}

// TypeControl selectively disables predicate families the caller cannot
// re-derive. A disabled family is skipped: its leaves contribute nothing to
// the sibling combinator.
type TypeControl struct {
	CurrentPage bool
	Time        bool
}

// FullTypeControl enables every predicate family.
func FullTypeControl() TypeControl {
	return TypeControl{CurrentPage: true, Time: true}
}

// EvalContext carries everything the evaluator may consult. All maps may be
// nil; a missing attribute, segment or content state makes the leaf false,
// never an error.
type EvalContext struct {
	UserAttributes    map[string]any
	CompanyAttributes map[string]any
	Segments          map[string]bool
	ContentStates     map[string]ContentState

	// Condition ids the client has already resolved. An id present in
	// ActivatedIDs short-circuits its leaf to true; DeactivatedIDs to false.
	ActivatedIDs   map[string]bool
	DeactivatedIDs map[string]bool

	Client      *ClientContext
	TypeControl TypeControl
	Now         time.Time
}

func (ctx *EvalContext) now() time.Time {
	if ctx.Now.IsZero() {
		return time.Now()
	}
	return ctx.Now
}

// Evaluate computes the truth of a sibling list. Siblings share one
// combinator (the authoring UI keeps Operators uniform); AND short-circuits
// on the first false, OR on the first true. An empty list is true.
func Evaluate(conds []Condition, ctx *EvalContext) bool {
	if len(conds) == 0 {
		return true
	}
	if ctx == nil {
		ctx = &EvalContext{TypeControl: FullTypeControl()}
	}

	logic := siblingLogic(conds)
	evaluated := false
	for i := range conds {
		value, skipped := evaluateOne(&conds[i], ctx)
		if skipped {
			continue
		}
		evaluated = true
		if logic == LogicAnd && !value {
			return false
		}
		if logic == LogicOr && value {
			return true
		}
	}
	if !evaluated {
		return true
	}
	return logic == LogicAnd
}

// EvaluateCondition computes the truth of a single condition, honoring known
// client resolutions and the type control.
func EvaluateCondition(c *Condition, ctx *EvalContext) bool {
	value, skipped := evaluateOne(c, ctx)
	if skipped {
		return true
	}
	return value
}

// siblingLogic returns the combinator for a sibling list, defaulting to AND.
func siblingLogic(conds []Condition) Logic {
	for i := range conds {
		if conds[i].Operators == LogicOr {
			return LogicOr
		}
		if conds[i].Operators == LogicAnd {
			return LogicAnd
		}
	}
	return LogicAnd
}

func evaluateOne(c *Condition, ctx *EvalContext) (value bool, skipped bool) {
	if c.IsGroup() {
		return Evaluate(c.Conditions, ctx), false
	}

	if c.IsClientSide() && c.ID != "" {
		if ctx.ActivatedIDs[c.ID] {
			return true, false
		}
		if ctx.DeactivatedIDs[c.ID] {
			return false, false
		}
	}

	switch c.Type {
	case TypeUserAttribute:
		return evaluateAttribute(c, ctx.UserAttributes, ctx.now()), false
	case TypeCompanyAttribute:
		return evaluateAttribute(c, ctx.CompanyAttributes, ctx.now()), false
	case TypeSegment:
		return evaluateSegment(c, ctx.Segments), false
	case TypeContent:
		return evaluateContent(c, ctx.ContentStates), false
	case TypeCurrentPage:
		if !ctx.TypeControl.CurrentPage {
			return false, true
		}
		return evaluateCurrentPage(c, ctx.Client), false
	case TypeTime:
		if !ctx.TypeControl.Time {
			return false, true
		}
		return evaluateTime(c, ctx.now()), false
	case TypeElement:
		return evaluateElement(c, ctx.Client), false
	case TypeTextInput, TypeTextFill:
		return evaluateText(c, ctx.Client), false
	case TypeTaskIsClicked:
		return evaluateTaskClicked(c, ctx.Client), false
	case TypeWait:
		// Elapsed wait is only observable on the client.
		return false, false
	}
	return false, false
}

var numericLogics = map[string]bool{
	LogicLessThan:  true,
	LogicLessEqual: true,
	LogicGreater:   true,
	LogicGreaterEq: true,
	LogicBetween:   true,
}

var relativeDateLogics = map[string]bool{
	LogicRelLessThan: true,
	LogicRelMoreThan: true,
}

var listLogics = map[string]bool{
	LogicIncludesAll: true,
	LogicIncludesOne: true,
}

func evaluateAttribute(c *Condition, attrs map[string]any, now time.Time) bool {
	data, err := c.AttributePayload()
	if err != nil || data.AttrID == "" {
		return false
	}
	raw, exists := attrs[data.AttrID]
	if !exists {
		return false
	}

	switch {
	case numericLogics[data.Logic]:
		actual, ok := coerceNumber(raw)
		if !ok {
			return false
		}
		value, _ := coerceNumber(data.Value)
		value2, _ := coerceNumber(data.Value2)
		return compareNumber(data.Logic, actual, value, value2)
	case relativeDateLogics[data.Logic]:
		actual, ok := coerceTime(raw)
		if !ok {
			return false
		}
		days, ok := coerceNumber(data.Value)
		if !ok {
			return false
		}
		return compareRelativeDate(data.Logic, actual, int(days), now)
	case listLogics[data.Logic]:
		actual, ok := coerceStringList(raw)
		if !ok {
			return false
		}
		return compareList(data.Logic, actual, data.ListValues)
	default:
		if list, ok := coerceStringList(raw); ok {
			return compareList(data.Logic, list, data.ListValues)
		}
		actual, ok := coerceString(raw)
		if !ok {
			return false
		}
		return compareString(data.Logic, actual, data.Value)
	}
}

func evaluateSegment(c *Condition, segments map[string]bool) bool {
	data, err := c.SegmentPayload()
	if err != nil || data.SegmentID == "" {
		return false
	}
	member := segments[data.SegmentID]
	switch data.Logic {
	case "in":
		return member
	case "notIn":
		return !member
	}
	return false
}

func evaluateContent(c *Condition, states map[string]ContentState) bool {
	data, err := c.ContentPayload()
	if err != nil || data.ContentID == "" {
		return false
	}
	state := states[data.ContentID]
	switch data.Logic {
	case "seen":
		return state.Seen
	case "unseen":
		return !state.Seen
	case "completed":
		return state.Completed
	case "uncompleted":
		return !state.Completed
	case "actived":
		return state.Actived
	}
	return false
}

func evaluateCurrentPage(c *Condition, client *ClientContext) bool {
	data, err := c.CurrentPagePayload()
	if err != nil {
		return false
	}
	if client == nil || client.PageURL == "" {
		return false
	}
	return compareString(data.Logic, client.PageURL, data.Value)
}

func evaluateTime(c *Condition, now time.Time) bool {
	data, err := c.TimePayload()
	if err != nil {
		return false
	}
	parse := func(s string) (time.Time, bool) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	switch data.Logic {
	case "between":
		start, okStart := parse(data.StartDate)
		end, okEnd := parse(data.EndDate)
		if !okStart || !okEnd {
			return false
		}
		return !now.Before(start) && !now.After(end)
	case "after":
		start, ok := parse(data.StartDate)
		return ok && now.After(start)
	case "before":
		start, ok := parse(data.StartDate)
		return ok && now.Before(start)
	}
	return false
}

func evaluateElement(c *Condition, client *ClientContext) bool {
	data, err := c.ElementPayload()
	if err != nil {
		return false
	}
	state := client.ElementFor(data.Selector)
	if state == nil {
		return false
	}
	switch data.Logic {
	case "present":
		return state.Present
	case "unpresent":
		return !state.Present
	case "clicked":
		return state.Clicked
	case "disabled":
		return state.Disabled
	}
	return false
}

func evaluateText(c *Condition, client *ClientContext) bool {
	data, err := c.TextPayload()
	if err != nil {
		return false
	}
	value, ok := client.InputFor(data.Selector)
	if !ok {
		return false
	}
	if c.Type == TypeTextFill && data.Logic == "" {
		return value != ""
	}
	return compareString(data.Logic, value, data.Value)
}

func evaluateTaskClicked(c *Condition, client *ClientContext) bool {
	data, err := c.TaskClickedPayload()
	if err != nil {
		return false
	}
	return client.TaskClicked(data.TaskID)
}

// CollectClientConditions walks a tree and returns every leaf whose truth
// depends on client-observable state. Used to tell the SDK which conditions
// to keep watching.
func CollectClientConditions(conds []Condition) []Condition {
	var out []Condition
	for i := range conds {
		c := &conds[i]
		if c.IsGroup() {
			out = append(out, CollectClientConditions(c.Conditions)...)
			continue
		}
		if c.IsClientSide() {
			out = append(out, *c)
		}
	}
	return out
}

// HasClientConditions reports whether any leaf in the tree is client-side.
func HasClientConditions(conds []Condition) bool {
	for i := range conds {
		c := &conds[i]
		if c.IsGroup() {
			if HasClientConditions(c.Conditions) {
				return true
			}
			continue
		}
		if c.IsClientSide() {
			return true
		}
	}
	return false
}
