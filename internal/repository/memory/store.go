// Package memory is the reference in-memory implementation of repository.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
)

type userDoc struct {
	plants   map[uuid.UUID]model.Plant
	tasks    map[uuid.UUID]model.CareTask
	profile  *model.Profile
	unlocks  map[string]model.Unlock
	insights []model.Insight
}

// Store keeps every user's documents behind one mutex.
type Store struct {
	mu    sync.Mutex
	users map[uuid.UUID]*userDoc
}

// New returns an empty store.
func New() *Store { return &Store{users: make(map[uuid.UUID]*userDoc)} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) doc(userID uuid.UUID) *userDoc {
	d, ok := s.users[userID]
	if !ok {
		d = &userDoc{
			plants:  make(map[uuid.UUID]model.Plant),
			tasks:   make(map[uuid.UUID]model.CareTask),
			unlocks: make(map[string]model.Unlock),
		}
		s.users[userID] = d
	}
	return d
}

func (d *userDoc) hasPending(plantID uuid.UUID, a model.CareAction, except uuid.UUID) bool {
	for id, t := range d.tasks {
		if id != except && !t.Completed && t.PlantID == plantID && t.Action == a {
			return true
		}
	}
	return false
}

// checkVersion reports errs.ErrConflict when p was computed from a profile
// version other than the stored one.
func (d *userDoc) checkVersion(p model.Profile) error {
	var cur int64
	if d.profile != nil {
		cur = d.profile.Version
	}
	if p.Version != cur {
		return fmt.Errorf("profile version %d, stored %d: %w", p.Version, cur, errs.ErrConflict)
	}
	return nil
}

func (d *userDoc) putProfile(p model.Profile) {
	p.Version++
	d.profile = &p
}

func (d *userDoc) addUnlocks(list []model.Unlock) {
	for _, u := range list {
		if _, ok := d.unlocks[u.AchievementID]; !ok {
			d.unlocks[u.AchievementID] = u
		}
	}
}

// CreatePlant implements repository.PlantRepository.
func (s *Store) CreatePlant(_ context.Context, userID uuid.UUID, c model.PlantCreation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)

	if _, ok := d.plants[c.Plant.ID]; ok {
		return fmt.Errorf("plant %s: %w", c.Plant.ID, errs.ErrValidation)
	}
	seen := map[model.CareAction]bool{}
	for _, t := range c.Tasks {
		if seen[t.Action] {
			return fmt.Errorf("%s for plant %s: %w", t.Action, c.Plant.ID, errs.ErrPendingExists)
		}
		seen[t.Action] = true
	}
	if err := d.checkVersion(c.Profile); err != nil {
		return err
	}

	d.plants[c.Plant.ID] = c.Plant.Clone()
	for _, t := range c.Tasks {
		d.tasks[t.ID] = t
	}
	d.putProfile(c.Profile)
	d.addUnlocks(c.Unlocks)
	d.insights = append(d.insights, c.Insights...)
	return nil
}

// UpdatePlant implements repository.PlantRepository.
func (s *Store) UpdatePlant(_ context.Context, userID, plantID uuid.UUID, edit model.PlantEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)

	cur, ok := d.plants[plantID]
	if !ok {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	next := cur.Clone()
	edit.Apply(&next)
	d.plants[plantID] = next
	return nil
}

// LogCare implements repository.PlantRepository.
func (s *Store) LogCare(_ context.Context, userID, plantID uuid.UUID, ev model.CareEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)

	cur, ok := d.plants[plantID]
	if !ok {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	next := cur.Clone()
	next.RecordCare(ev)
	d.plants[plantID] = next
	return nil
}

// DeletePlant implements repository.PlantRepository.
func (s *Store) DeletePlant(_ context.Context, userID, plantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].deletePlant(plantID)
}

func (d *userDoc) deletePlant(plantID uuid.UUID) error {
	if d == nil {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	if _, ok := d.plants[plantID]; !ok {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	delete(d.plants, plantID)
	for id, t := range d.tasks {
		if t.PlantID == plantID {
			delete(d.tasks, id)
		}
	}
	return nil
}

// RetirePlant implements repository.PlantRepository.
func (s *Store) RetirePlant(_ context.Context, userID, plantID uuid.UUID, memorial model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.users[userID]
	if err := d.deletePlant(plantID); err != nil {
		return err
	}
	d.insights = append(d.insights, memorial)
	return nil
}

// ListPlants implements repository.PlantRepository.
func (s *Store) ListPlants(_ context.Context, userID uuid.UUID) ([]model.Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Plant, 0)
	if d, ok := s.users[userID]; ok {
		for _, p := range d.plants {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateAdded.Before(out[j].DateAdded) })
	return out, nil
}

// ListTasks implements repository.TaskRepository.
func (s *Store) ListTasks(_ context.Context, userID uuid.UUID) ([]model.CareTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CareTask, 0)
	if d, ok := s.users[userID]; ok {
		for _, t := range d.tasks {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// SnoozeTask implements repository.TaskRepository.
func (s *Store) SnoozeTask(_ context.Context, userID uuid.UUID, t model.CareTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)
	cur, ok := d.tasks[t.ID]
	if !ok || cur.Completed {
		return fmt.Errorf("open task %s: %w", t.ID, errs.ErrNotFound)
	}
	cur.DueDate = t.DueDate
	cur.SnoozedUntil = t.SnoozedUntil
	d.tasks[t.ID] = cur
	return nil
}

// CommitCompletion implements repository.TaskRepository. Every check runs
// before the first write.
func (s *Store) CommitCompletion(_ context.Context, userID uuid.UUID, c model.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)

	cur, ok := d.tasks[c.Task.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", c.Task.ID, errs.ErrNotFound)
	}
	if cur.Completed {
		return fmt.Errorf("task %s: %w", c.Task.ID, errs.ErrAlreadyCompleted)
	}
	plant, ok := d.plants[c.PlantID]
	if !ok {
		return fmt.Errorf("plant %s: %w", c.PlantID, errs.ErrNotFound)
	}
	if d.hasPending(c.Next.PlantID, c.Next.Action, c.Task.ID) {
		return fmt.Errorf("%s for plant %s: %w", c.Next.Action, c.Next.PlantID, errs.ErrPendingExists)
	}
	if err := d.checkVersion(c.Profile); err != nil {
		return err
	}

	d.tasks[c.Task.ID] = c.Task
	d.tasks[c.Next.ID] = c.Next

	next := plant.Clone()
	next.RecordCare(c.Event)
	d.plants[c.PlantID] = next

	d.putProfile(c.Profile)
	d.addUnlocks(c.Unlocks)
	d.insights = append(d.insights, c.Insights...)
	return nil
}

// GetProfile implements repository.ProfileRepository.
func (s *Store) GetProfile(_ context.Context, userID uuid.UUID) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.users[userID]
	if !ok || d.profile == nil {
		return model.Profile{}, fmt.Errorf("profile %s: %w", userID, errs.ErrNotFound)
	}
	return *d.profile, nil
}

// SaveProfile implements repository.ProfileRepository.
func (s *Store) SaveProfile(_ context.Context, userID uuid.UUID, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)
	if err := d.checkVersion(p); err != nil {
		return err
	}
	d.putProfile(p)
	return nil
}

// ListUnlocks implements repository.AchievementRepository.
func (s *Store) ListUnlocks(_ context.Context, userID uuid.UUID) ([]model.Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Unlock, 0)
	if d, ok := s.users[userID]; ok {
		for _, u := range d.unlocks {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out, nil
}

// AddInsight implements repository.InsightRepository.
func (s *Store) AddInsight(_ context.Context, userID uuid.UUID, in model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(userID)
	d.insights = append(d.insights, in)
	return nil
}

// ListInsights implements repository.InsightRepository.
func (s *Store) ListInsights(_ context.Context, userID uuid.UUID) ([]model.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Insight, 0)
	if d, ok := s.users[userID]; ok {
		out = append(out, d.insights...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DismissInsight implements repository.InsightRepository.
func (s *Store) DismissInsight(_ context.Context, userID, insightID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.users[userID]; ok {
		for i := range d.insights {
			if d.insights[i].ID == insightID {
				d.insights[i].Dismissed = true
				return nil
			}
		}
	}
	return fmt.Errorf("insight %s: %w", insightID, errs.ErrNotFound)
}
