package merging

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Merge steps, in the order the coordinator runs them. A MergeError carries
// the step it failed in so callers can tell a bad request from a storage
// fault.
const (
	StepValidate     = "validate"
	StepLock         = "lock"
	StepBegin        = "begin"
	StepFetch        = "fetch"
	StepReassign     = "reassign"
	StepContactCount = "contact_count"
	StepDelete       = "delete"
	StepCommit       = "commit"
)

type MergeError struct {
	Step     string
	ClientID string
	Message  string
}

func NewMergeError(msg string) *MergeError {
	return &MergeError{
		Message:  msg,
		Step:     "",
		ClientID: "",
	}
}

// NewMergeErrorf creates a new MergeError with a formatted message
func NewMergeErrorf(format string, args ...any) *MergeError {
	// Handle error wrapping directive %w
	// If one of the args is an error and format contains %w,
	// extract the error message and replace %w with %v
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
		}
	}

	return &MergeError{
		Message:  fmt.Sprintf(format, args...),
		Step:     "",
		ClientID: "",
	}
}

func WrapMergeError(e error) *MergeError {
	if e == nil {
		return nil
	}

	if mergeError, ok := e.(*MergeError); ok {
		return mergeError
	}

	return &MergeError{
		Message:  e.Error(),
		Step:     "",
		ClientID: "",
	}
}

func (e *MergeError) Error() string {
	path := []string{}
	if e.Step != "" {
		path = append(path, fmt.Sprintf("step '%s'", e.Step))
	}
	if e.ClientID != "" {
		path = append(path, fmt.Sprintf("client '%s'", e.ClientID))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " ") + ": " + e.Message
}

func (e *MergeError) AddStep(step string) *MergeError {
	e.Step = step
	return e
}

func (e *MergeError) AddClient(clientID string) *MergeError {
	e.ClientID = clientID
	return e
}

// ToHTTPError maps the failed step to a status: bad requests reject in
// validate, lock contention is a conflict, everything later is a server
// fault.
func (e *MergeError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusInternalServerError
	switch e.Step {
	case StepValidate:
		status = http.StatusBadRequest
	case StepLock:
		status = http.StatusConflict
	}
	return httperror.NewHTTPError(status, e.Error()).AddMetaValue("step", e.Step).AddMetaValue("client_id", e.ClientID)
}

func IsMergeError(err error) bool {
	_, ok := err.(*MergeError)
	return ok
}
