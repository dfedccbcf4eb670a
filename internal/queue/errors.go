package queue

import (
	"errors"

	"recipecast/internal/services"
)

// FailureStatus maps a stage error to the terminal status the workflow
// should persist after the stage fails.
//
// Errors carrying the rejection marker become StatusRejected: the pipeline
// worked correctly and the video itself was refused, either by the size guard
// or by the server. Everything else is StatusFailed and eligible for retry.
func FailureStatus(err error) Status {
	if errors.Is(err, services.ErrRejected) {
		return StatusRejected
	}
	return StatusFailed
}
