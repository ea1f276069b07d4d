// Package task owns the JSON-RPC task lifecycle: a small state
// machine, a bounded in-memory task table, and the skill router that
// decides which handler synthesizes a result.
package task

import (
	"errors"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

var (
	ErrNotFound          = errors.New("task: not found")
	ErrNotCancelable     = errors.New("task: not cancelable")
	ErrInvalidTransition = errors.New("task: invalid state transition")
)

// CanTransition encodes the lifecycle. The synchronous engine only
// produces submitted → completed | canceled; working exists so a future
// asynchronous path can pass through it before a terminal state.
func CanTransition(from, to string) bool {
	switch from {
	case a2a.TaskSubmitted:
		return to == a2a.TaskWorking || to == a2a.TaskCompleted || to == a2a.TaskCanceled ||
			to == a2a.TaskFailed || to == a2a.TaskRejected
	case a2a.TaskWorking:
		return to == a2a.TaskCompleted || to == a2a.TaskCanceled ||
			to == a2a.TaskFailed || to == a2a.TaskRejected
	default:
		return false
	}
}

// IsTerminal reports whether a state admits no further transitions.
// This is checked explicitly on cancel; terminal tasks reject with a
// distinct "not cancelable" error.
func IsTerminal(state string) bool {
	switch state {
	case a2a.TaskCompleted, a2a.TaskCanceled, a2a.TaskFailed, a2a.TaskRejected:
		return true
	default:
		return false
	}
}
