package domain

// RunResult is what one engine call hands back to its caller.
type RunResult struct {
	// Actions are the side-effects to perform, in step execution order.
	Actions []Action `json:"actions"`
	// Session is the snapshot persisted at the end of the call.
	Session *Session `json:"session"`
	// NextStepID is the step a wait suspension continues at, empty otherwise.
	NextStepID string `json:"next_step_id,omitempty"`
}
