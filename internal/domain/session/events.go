package session

// Built-in event code names.
const (
	EventFlowStarted        = "flow_started"
	EventFlowStepSeen       = "flow_step_seen"
	EventFlowCompleted      = "flow_completed"
	EventFlowEnded          = "flow_ended"
	EventQuestionAnswered   = "question_answered"
	EventChecklistStarted   = "checklist_started"
	EventChecklistTaskClick = "checklist_task_clicked"
	EventChecklistDismissed = "checklist_dismissed"
	EventChecklistCompleted = "checklist_completed"
)

// Payload field carrying flow progress, 0..100.
const AttrFlowStepProgress = "flow_step_progress"

// Reason codes attached to start events.
const (
	StartReasonAutoStart = "auto_start"
	StartReasonManual    = "manual"
)

// StateForEvent maps an event code name to the session state it leaves the
// session in. Terminal events end the session; everything else keeps it
// active.
func StateForEvent(codeName string) int {
	switch codeName {
	case EventFlowCompleted, EventFlowEnded, EventChecklistDismissed, EventChecklistCompleted:
		return StateEnded
	}
	return StateActive
}

// ProgressFromData extracts flow progress from an event payload. The second
// return is false when the payload carries no progress, in which case the
// session's progress is left untouched.
func ProgressFromData(data map[string]any) (int, bool) {
	raw, ok := data[AttrFlowStepProgress]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// IsStartEvent reports whether the event opens a new session.
func IsStartEvent(codeName string) bool {
	return codeName == EventFlowStarted || codeName == EventChecklistStarted
}
