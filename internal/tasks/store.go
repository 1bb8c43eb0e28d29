// Package tasks holds the in-memory care task collection for one user.
//
// Tasks live in an arena keyed by id. A second index maps each
// (plant, action) pair to its single incomplete task, so the
// at-most-one-pending rule is checked when a task is inserted.
package tasks

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/timeutil"
)

// Key identifies the pending slot of one plant and action.
type Key struct {
	PlantID uuid.UUID
	Action  model.CareAction
}

// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	byID    map[uuid.UUID]*model.CareTask
	pending map[Key]uuid.UUID
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[uuid.UUID]*model.CareTask),
		pending: make(map[Key]uuid.UUID),
	}
}

// Load builds a store from persisted tasks.
func Load(list []model.CareTask) (*Store, error) {
	s := New()
	for _, t := range list {
		if err := s.Insert(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Insert adds t. An incomplete task is rejected when its pair already has one.
func (s *Store) Insert(t model.CareTask) error {
	if _, ok := s.byID[t.ID]; ok {
		return fmt.Errorf("%w: task %s already stored", errs.ErrValidation, t.ID)
	}
	k := Key{t.PlantID, t.Action}
	if !t.Completed {
		if cur, ok := s.pending[k]; ok {
			return fmt.Errorf("%w: %s for plant %s (task %s)", errs.ErrPendingExists, t.Action, t.PlantID, cur)
		}
		s.pending[k] = t.ID
	}
	s.byID[t.ID] = &t
	return nil
}

// CanInsert reports whether an incomplete task for the pair may be added.
func (s *Store) CanInsert(plantID uuid.UUID, a model.CareAction) bool {
	_, ok := s.pending[Key{plantID, a}]
	return !ok
}

// Get returns a copy of the task with id.
func (s *Store) Get(id uuid.UUID) (model.CareTask, error) {
	t, ok := s.byID[id]
	if !ok {
		return model.CareTask{}, fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	return *t, nil
}

// Pending returns the incomplete task for the pair, if any.
func (s *Store) Pending(plantID uuid.UUID, a model.CareAction) (model.CareTask, bool) {
	id, ok := s.pending[Key{plantID, a}]
	if !ok {
		return model.CareTask{}, false
	}
	return *s.byID[id], true
}

// All returns every task ordered by due date.
func (s *Store) All() []model.CareTask {
	return s.filter(func(*model.CareTask) bool { return true })
}

// ForPlant returns the plant's tasks ordered by due date.
func (s *Store) ForPlant(plantID uuid.UUID) []model.CareTask {
	return s.filter(func(t *model.CareTask) bool { return t.PlantID == plantID })
}

// Incomplete returns every open task.
func (s *Store) Incomplete() []model.CareTask {
	return s.filter(func(t *model.CareTask) bool { return !t.Completed })
}

// DueOn returns incomplete tasks due on day's calendar date.
func (s *Store) DueOn(day time.Time) []model.CareTask {
	return s.filter(func(t *model.CareTask) bool {
		return !t.Completed && timeutil.SameDay(day, t.DueDate)
	})
}

// Overdue returns incomplete tasks due strictly before the start of now's day.
func (s *Store) Overdue(now time.Time) []model.CareTask {
	return s.filter(func(t *model.CareTask) bool {
		return !t.Completed && timeutil.DaysBetween(now, t.DueDate) < 0
	})
}

// Upcoming returns incomplete tasks due after day's calendar date.
func (s *Store) Upcoming(day time.Time) []model.CareTask {
	return s.filter(func(t *model.CareTask) bool {
		return !t.Completed && timeutil.DaysBetween(day, t.DueDate) > 0
	})
}

// CompletedOn returns tasks completed on day's calendar date.
func (s *Store) CompletedOn(day time.Time) []model.CareTask {
	return s.filter(func(t *model.CareTask) bool {
		return t.Completed && t.CompletedDate != nil && timeutil.SameDay(day, *t.CompletedDate)
	})
}

// Complete closes an open task and frees its pending slot.
func (s *Store) Complete(id uuid.UUID, at time.Time, xp int) (model.CareTask, error) {
	t, ok := s.byID[id]
	if !ok {
		return model.CareTask{}, fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	if t.Completed {
		return model.CareTask{}, fmt.Errorf("task %s: %w", id, errs.ErrAlreadyCompleted)
	}
	t.Completed = true
	t.CompletedDate = &at
	t.XPEarned = xp
	delete(s.pending, Key{t.PlantID, t.Action})
	return *t, nil
}

// Snooze moves an open task's due date to until.
func (s *Store) Snooze(id uuid.UUID, until time.Time) (model.CareTask, error) {
	t, ok := s.byID[id]
	if !ok {
		return model.CareTask{}, fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	if t.Completed {
		return model.CareTask{}, fmt.Errorf("task %s: %w", id, errs.ErrAlreadyCompleted)
	}
	t.DueDate = until
	t.SnoozedUntil = &until
	return *t, nil
}

// RemovePlant drops every task of the plant and returns how many were removed.
func (s *Store) RemovePlant(plantID uuid.UUID) int {
	n := 0
	for id, t := range s.byID {
		if t.PlantID == plantID {
			delete(s.byID, id)
			n++
		}
	}
	for k := range s.pending {
		if k.PlantID == plantID {
			delete(s.pending, k)
		}
	}
	return n
}

// Len returns the number of stored tasks.
func (s *Store) Len() int { return len(s.byID) }

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	out := New()
	for id, t := range s.byID {
		c := *t
		out.byID[id] = &c
	}
	for k, v := range s.pending {
		out.pending[k] = v
	}
	return out
}

func (s *Store) filter(keep func(*model.CareTask) bool) []model.CareTask {
	out := make([]model.CareTask, 0)
	for _, t := range s.byID {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
