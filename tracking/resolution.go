package tracking

import "strings"

// Outcome describes how an experiment id was obtained.
type Outcome int

const (
	// Unresolved means resolution has not run yet.
	Unresolved Outcome = iota
	// Created means this process created the experiment.
	Created
	// AlreadyExists means the experiment was found by name after create failed.
	AlreadyExists
	// Failed means neither create nor lookup produced an id.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// Resolution is the result of get-or-create on an experiment name.
//
// Cause is set when the create call failed for a reason other than
// RESOURCE_ALREADY_EXISTS but the lookup still found the experiment, and for
// Failed resolutions.
type Resolution struct {
	Outcome      Outcome
	ExperimentID string
	Cause        error
}

// ExperimentURL returns the web UI address of an experiment.
func ExperimentURL(base, experimentID string) string {
	return strings.TrimRight(base, "/") + "/#/experiments/" + experimentID
}
