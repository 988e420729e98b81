package rules

// ElementState is a client-side snapshot of one watched DOM element.
type ElementState struct {
	Present  bool `json:"present"`
	Clicked  bool `json:"clicked"`
	Disabled bool `json:"disabled"`
}

// ClientContext is the client-reported observable state for one user in one
// environment. The SDK reports it periodically; the server caches it with a
// TTL and consults it when evaluating client-side conditions.
type ClientContext struct {
	PageURL    string                   `json:"pageUrl,omitempty"`
	Elements   map[string]*ElementState `json:"elements,omitempty"`
	Inputs     map[string]string        `json:"inputs,omitempty"`
	TaskClicks map[string]bool          `json:"taskClicks,omitempty"`
}

// ElementFor returns the reported state for a selector, or nil when the
// client has not reported it.
func (cc *ClientContext) ElementFor(selector string) *ElementState {
	if cc == nil || cc.Elements == nil {
		return nil
	}
	return cc.Elements[selector]
}

// InputFor returns the reported input value for a selector.
func (cc *ClientContext) InputFor(selector string) (string, bool) {
	if cc == nil || cc.Inputs == nil {
		return "", false
	}
	v, ok := cc.Inputs[selector]
	return v, ok
}

// TaskClicked reports whether the client recorded a click for a checklist
// task.
func (cc *ClientContext) TaskClicked(taskID string) bool {
	if cc == nil || cc.TaskClicks == nil {
		return false
	}
	return cc.TaskClicks[taskID]
}
