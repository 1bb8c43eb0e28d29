package model

import (
	"fmt"
	"strings"

	"github.com/and161185/plant-keeper/internal/errs"
)

// CareAction is one recurring maintenance activity.
type CareAction string

const (
	Water     CareAction = "water"
	Mist      CareAction = "mist"
	Fertilize CareAction = "fertilize"
	Rotate    CareAction = "rotate"
)

// Actions lists every care action in display order.
var Actions = []CareAction{Water, Mist, Fertilize, Rotate}

// SeedActions are scheduled as soon as a plant is added.
var SeedActions = []CareAction{Water, Mist}

// Valid reports whether a is a known action.
func (a CareAction) Valid() bool {
	for _, x := range Actions {
		if x == a {
			return true
		}
	}
	return false
}

// ParseCareAction parses a case-insensitive action name.
func ParseCareAction(s string) (CareAction, error) {
	a := CareAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown care action %q", errs.ErrValidation, s)
	}
	return a, nil
}

// Schedule maps each action to its interval in whole days.
type Schedule map[CareAction]int

// Days returns the interval for a, or 0 when unset.
func (s Schedule) Days(a CareAction) int { return s[a] }

// Validate requires a positive interval for every action.
func (s Schedule) Validate() error {
	for _, a := range Actions {
		if d, ok := s[a]; !ok || d <= 0 {
			return fmt.Errorf("%w: %s every %d days", errs.ErrInvalidFrequency, a, s[a])
		}
	}
	for a := range s {
		if !a.Valid() {
			return fmt.Errorf("%w: unknown care action %q", errs.ErrValidation, a)
		}
	}
	return nil
}

// Clone returns a copy of the schedule.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
