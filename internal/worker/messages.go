package worker

import (
	"errors"

	"github.com/google/uuid"

	"github.com/andrej220/sshop/internal/operr"
)

// TaskMessage asks for one ssh task. Config holds the same keys as a task
// file, including an optional "ssh" section.
type TaskMessage struct {
	ID     uuid.UUID      `json:"id"`
	Config map[string]any `json:"config"`
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type ResultMessage struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	Kind       string    `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	ExitStatus *int      `json:"exit_status,omitempty"`
}

func resultFor(id uuid.UUID, err error) ResultMessage {
	if err == nil {
		zero := 0
		return ResultMessage{ID: id, Status: StatusSuccess, ExitStatus: &zero}
	}
	res := ResultMessage{ID: id, Status: StatusFailure, Error: err.Error()}
	var e *operr.Error
	if errors.As(err, &e) {
		res.Kind = e.Kind.String()
		if e.Kind == operr.KindCommandFailed {
			status := e.ExitStatus
			res.ExitStatus = &status
		}
	}
	return res
}
