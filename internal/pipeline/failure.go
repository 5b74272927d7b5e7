package pipeline

import (
	"errors"

	"github.com/kalambet/salesiq/internal/executor"
	"github.com/kalambet/salesiq/internal/metrics"
)

// FailureKind classifies why a question could not be answered.
type FailureKind string

const (
	FailurePlan      FailureKind = "plan_generation"
	FailureExecution FailureKind = "execution"
)

func (k FailureKind) outcome() string {
	if k == FailurePlan {
		return metrics.OutcomePlanError
	}
	return metrics.OutcomeExecutionError
}

const planFailureMessage = "Sorry, I could not understand the question."

// Failure is a terminal, user-facing error for one question. Message is
// safe to show; Err keeps the underlying cause for logs.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

func planFailure(err error) *Failure {
	return &Failure{Kind: FailurePlan, Message: planFailureMessage, Err: err}
}

func executionFailure(err error) *Failure {
	msg := err.Error()
	var execErr *executor.ExecutionError
	if errors.As(err, &execErr) {
		msg = execErr.Message
	}
	return &Failure{
		Kind:    FailureExecution,
		Message: "An error occurred while analyzing the data: " + msg,
		Err:     err,
	}
}
