package campaigns

import (
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
)

// Status is the closed set of campaign lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{StatusPending, StatusActive, StatusPaused, StatusCompleted}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", errors.Wrapf(apperrors.ErrInvalidField, "unknown status %q", v)
	}
	return s, nil
}

// UnmarshalText rejects anything outside the closed set.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Trigger is an event that may move a campaign between states.
type Trigger string

const (
	TriggerPaymentConfirmed Trigger = "payment_confirmed"
	TriggerPause            Trigger = "pause"
	TriggerResume           Trigger = "resume"
	TriggerComplete         Trigger = "complete"
	TriggerEdit             Trigger = "edit"
)

// transitions is the only source of allowed status changes. completed has no exits.
var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerPaymentConfirmed: StatusActive,
		TriggerEdit:             StatusPending,
	},
	StatusActive: {
		TriggerPause:    StatusPaused,
		TriggerComplete: StatusCompleted,
	},
	StatusPaused: {
		TriggerResume:   StatusActive,
		TriggerComplete: StatusCompleted,
	},
}

// Next returns the state reached from `from` on trigger, or ErrInvalidTransition.
func Next(from Status, trigger Trigger) (Status, error) {
	to, ok := transitions[from][trigger]
	if !ok {
		return from, errors.Wrapf(apperrors.ErrInvalidTransition, "%s from %s", trigger, from)
	}
	return to, nil
}

// Allowed lists the triggers accepted in state s.
func Allowed(s Status) []Trigger {
	out := make([]Trigger, 0, len(transitions[s]))
	for _, t := range []Trigger{TriggerPaymentConfirmed, TriggerPause, TriggerResume, TriggerComplete, TriggerEdit} {
		if _, ok := transitions[s][t]; ok {
			out = append(out, t)
		}
	}
	return out
}
