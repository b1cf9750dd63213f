package deploy

import "errors"

const (
	StepGenerate       = "generate"
	StepCreate         = "create"
	StepEnable         = "enable"
	StepNotify         = "notify"
	StepUpdate         = "update"
	StepNotifyRevision = "notify_revision"
)

var stepMessages = map[string]string{
	StepGenerate:       "Failed to generate code",
	StepCreate:         "Failed to create GitHub repo",
	StepEnable:         "Failed to enable GitHub Pages",
	StepNotify:         "Failed to send notification",
	StepUpdate:         "Failed to update GitHub repo",
	StepNotifyRevision: "Failed to send revision notification",
}

// StepError is a failure of one pipeline step.
// Its message is safe to show to the caller.
type StepError struct {
	Step    string
	Message string
	Err     error
}

func newStepError(step string, err error) *StepError {
	return &StepError{Step: step, Message: stepMessages[step], Err: err}
}

func (e *StepError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// AsStepError returns the StepError in err's chain, if any.
func AsStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	ok := errors.As(err, &stepErr)
	return stepErr, ok
}
