package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/plant-keeper/internal/achievement"
	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/health"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/suggest"
	"github.com/and161185/plant-keeper/internal/timeutil"
)

// PlantInput describes a new plant. Frequency must list every care action.
type PlantInput struct {
	Nickname       string
	Species        string
	ScientificName string
	Photo          string
	Personality    model.Personality
	Frequency      model.Schedule
	Condition      model.Condition
	Vitals         model.Vitals
}

// PlantPatch lists plant fields to change; nil fields are left alone.
// Frequency entries replace only the actions they name.
type PlantPatch struct {
	Nickname       *string
	Species        *string
	ScientificName *string
	Photo          *string
	Personality    *model.Personality
	Frequency      model.Schedule
	Condition      *model.Condition
	HealthScore    *int
	HydrationLevel *int
	LightExposure  *int
	HumidityLevel  *int
}

// PlantStatus is a plant's current derived state.
type PlantStatus struct {
	health.Result
	Vitals   model.Vitals `json:"vitals"`
	Tagline  string       `json:"tagline"`
	LastCare string       `json:"lastCare,omitempty"`
	// NextDue maps each action to the days until its pending task is due.
	NextDue map[model.CareAction]int `json:"nextDueInDays"`
}

// AddPlant stores a new plant with its seed water and mist tasks and
// evaluates plant-count badges.
func (s *CareService) AddPlant(ctx context.Context, userID uuid.UUID, in PlantInput) (p model.Plant, err error) {
	in.Nickname = strings.TrimSpace(in.Nickname)
	if in.Nickname == "" {
		return model.Plant{}, fmt.Errorf("%w: empty nickname", errs.ErrValidation)
	}
	if err := in.Frequency.Validate(); err != nil {
		return model.Plant{}, err
	}
	if in.Condition != "" && !in.Condition.Valid() {
		return model.Plant{}, fmt.Errorf("%w: unknown condition %q", errs.ErrValidation, in.Condition)
	}

	err = s.retry(userID, "add plant", func() (err error) {
		p, err = s.addPlant(ctx, userID, in)
		return err
	})
	return p, err
}

func (s *CareService) addPlant(ctx context.Context, userID uuid.UUID, in PlantInput) (model.Plant, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Plant{}, err
	}
	defer release()

	now := s.now()
	p := model.Plant{
		ID:             uuid.Must(uuid.NewV4()),
		Nickname:       in.Nickname,
		Species:        strings.TrimSpace(in.Species),
		ScientificName: in.ScientificName,
		Photo:          in.Photo,
		Personality:    in.Personality,
		DateAdded:      now,
		Frequency:      in.Frequency.Clone(),
		LastCare:       make(map[model.CareAction]time.Time),
		Condition:      in.Condition,
		CareHistory:    []model.CareEvent{},
		Vitals:         clampVitals(in.Vitals),
	}
	if p.Personality == "" {
		p.Personality = model.PersonalityChillVibes
	}
	if p.Condition == "" {
		p.Condition = model.ConditionGrowing
	}

	next := ss.tasks.Clone()
	seed := make([]model.CareTask, 0, len(model.SeedActions))
	for _, a := range model.SeedActions {
		t := model.CareTask{
			ID:      uuid.Must(uuid.NewV4()),
			PlantID: p.ID,
			Action:  a,
			DueDate: timeutil.AddDays(now, p.Frequency.Days(a)),
		}
		if err := next.Insert(t); err != nil {
			return model.Plant{}, err
		}
		seed = append(seed, t)
	}

	prof := ss.profile
	prof.TotalPlantsAdded++
	defs := achievement.Evaluate(achievement.PlantAdded, achievement.StatsOf(prof, len(ss.plants)+1), ss.unlocks)
	unlocks := achievement.Unlocks(defs, now)

	err = s.store.CreatePlant(ctx, userID, model.PlantCreation{
		Plant:    p,
		Tasks:    seed,
		Profile:  prof,
		Unlocks:  unlocks,
		Insights: milestones(defs, now),
	})
	if err != nil {
		return model.Plant{}, ss.failed(fmt.Errorf("add plant: %w", err))
	}
	prof.Version++

	ss.plants[p.ID] = p
	ss.tasks = next
	ss.profile = prof
	ss.mergeUnlocks(unlocks)

	s.log.Info("plant added",
		zap.String("user_id", userID.String()),
		zap.String("plant_id", p.ID.String()),
		zap.Int("unlocked", len(unlocks)),
	)
	s.publish(ctx, userID, &p.ID)
	return p.Clone(), nil
}

// UpdatePlant applies patch. Only the patched fields are written, so care
// recorded elsewhere in the meantime survives. Frequency changes take effect
// from the next completion; the pending tasks keep their due dates.
func (s *CareService) UpdatePlant(ctx context.Context, userID, plantID uuid.UUID, patch PlantPatch) (model.Plant, error) {
	edit, err := patch.edit()
	if err != nil {
		return model.Plant{}, err
	}

	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Plant{}, err
	}
	defer release()

	cur, err := ss.plant(plantID)
	if err != nil {
		return model.Plant{}, err
	}
	p := cur.Clone()
	edit.Apply(&p)
	if err := p.Frequency.Validate(); err != nil {
		return model.Plant{}, err
	}

	if err := s.store.UpdatePlant(ctx, userID, plantID, edit); err != nil {
		return model.Plant{}, ss.failed(fmt.Errorf("update plant: %w", err))
	}
	ss.plants[p.ID] = p

	s.log.Info("plant updated", zap.String("user_id", userID.String()), zap.String("plant_id", p.ID.String()))
	s.publish(ctx, userID, &p.ID)
	return p.Clone(), nil
}

// edit validates patch and converts it to a stored-field edit.
func (patch PlantPatch) edit() (model.PlantEdit, error) {
	e := model.PlantEdit{
		ScientificName: patch.ScientificName,
		Photo:          patch.Photo,
		Personality:    patch.Personality,
		Frequency:      patch.Frequency.Clone(),
		Vitals: clampVitals(model.Vitals{
			HealthScore:    patch.HealthScore,
			HydrationLevel: patch.HydrationLevel,
			LightExposure:  patch.LightExposure,
			HumidityLevel:  patch.HumidityLevel,
		}),
	}
	if patch.Nickname != nil {
		n := strings.TrimSpace(*patch.Nickname)
		if n == "" {
			return e, fmt.Errorf("%w: empty nickname", errs.ErrValidation)
		}
		e.Nickname = &n
	}
	if patch.Species != nil {
		sp := strings.TrimSpace(*patch.Species)
		e.Species = &sp
	}
	if patch.Condition != nil && !patch.Condition.Valid() {
		return e, fmt.Errorf("%w: unknown condition %q", errs.ErrValidation, *patch.Condition)
	}
	e.Condition = patch.Condition
	for a, d := range e.Frequency {
		if d <= 0 {
			return e, fmt.Errorf("%w: %s every %d days", errs.ErrInvalidFrequency, a, d)
		}
	}
	return e, nil
}

// RemovePlant deletes the plant and every task that belongs to it.
func (s *CareService) RemovePlant(ctx context.Context, userID, plantID uuid.UUID) error {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := ss.plant(plantID); err != nil {
		return err
	}
	if err := s.store.DeletePlant(ctx, userID, plantID); err != nil {
		return ss.failed(fmt.Errorf("remove plant: %w", err))
	}
	n := ss.drop(plantID)

	s.log.Info("plant removed",
		zap.String("user_id", userID.String()),
		zap.String("plant_id", plantID.String()),
		zap.Int("tasks", n),
	)
	s.publish(ctx, userID, &plantID)
	return nil
}

// MarkDead stores a memorial insight and removes the plant. An empty
// reflection is replaced by a days-alive summary.
func (s *CareService) MarkDead(ctx context.Context, userID, plantID uuid.UUID, reflection string) (model.Insight, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Insight{}, err
	}
	defer release()

	p, err := ss.plant(plantID)
	if err != nil {
		return model.Insight{}, err
	}
	now := s.now()
	msg := strings.TrimSpace(reflection)
	if msg == "" {
		days := int(now.Sub(p.DateAdded) / timeutil.Day)
		msg = fmt.Sprintf("You kept %s alive for %d days.", p.Nickname, max(days, 0))
	}
	memorial := model.Insight{
		ID:        uuid.Must(uuid.NewV4()),
		PlantID:   &plantID,
		Type:      model.InsightMemorial,
		Title:     "Goodbye, " + p.Nickname,
		Message:   msg,
		CreatedAt: now,
	}

	if err := s.store.RetirePlant(ctx, userID, plantID, memorial); err != nil {
		return model.Insight{}, ss.failed(fmt.Errorf("retire plant: %w", err))
	}
	ss.drop(plantID)

	s.log.Info("plant retired", zap.String("user_id", userID.String()), zap.String("plant_id", plantID.String()))
	s.publish(ctx, userID, &plantID)
	return memorial, nil
}

func (ss *session) drop(plantID uuid.UUID) int {
	delete(ss.plants, plantID)
	next := ss.tasks.Clone()
	n := next.RemovePlant(plantID)
	ss.tasks = next
	return n
}

// Plants returns the user's plants ordered by date added.
func (s *CareService) Plants(ctx context.Context, userID uuid.UUID) ([]model.Plant, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	return ss.sortedPlants(), nil
}

func (ss *session) sortedPlants() []model.Plant {
	out := make([]model.Plant, 0, len(ss.plants))
	for _, p := range ss.plants {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateAdded.Equal(out[j].DateAdded) {
			return out[i].DateAdded.Before(out[j].DateAdded)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Plant returns one plant.
func (s *CareService) Plant(ctx context.Context, userID, plantID uuid.UUID) (model.Plant, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Plant{}, err
	}
	defer release()
	p, err := ss.plant(plantID)
	return p.Clone(), err
}

// PlantStatus derives the plant's status from its decayed vitals.
func (s *CareService) PlantStatus(ctx context.Context, userID, plantID uuid.UUID) (PlantStatus, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return PlantStatus{}, err
	}
	defer release()

	p, err := ss.plant(plantID)
	if err != nil {
		return PlantStatus{}, err
	}
	now := s.now()
	p.Vitals = health.Decay(p, now)

	st := PlantStatus{
		Result:  health.Status(p.Vitals),
		Vitals:  p.Vitals,
		Tagline: health.Tagline(p),
		NextDue: make(map[model.CareAction]int),
	}
	var last time.Time
	for _, t := range p.LastCare {
		if t.After(last) {
			last = t
		}
	}
	if !last.IsZero() {
		st.LastCare = timeutil.FormatTimeAgo(last, now)
	}
	for _, a := range model.Actions {
		if t, ok := ss.tasks.Pending(plantID, a); ok {
			st.NextDue[a] = timeutil.DaysBetween(now, t.DueDate)
		}
	}
	return st, nil
}

// Suggestions returns schedule adjustments for the plant.
func (s *CareService) Suggestions(ctx context.Context, userID, plantID uuid.UUID) ([]suggest.Suggestion, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := ss.plant(plantID)
	if err != nil {
		return nil, err
	}
	return suggest.For(p, s.now()), nil
}

func clampVitals(v model.Vitals) model.Vitals {
	out := model.Vitals{}
	for _, f := range []struct{ in, out **int }{
		{&v.HealthScore, &out.HealthScore},
		{&v.HydrationLevel, &out.HydrationLevel},
		{&v.LightExposure, &out.LightExposure},
		{&v.HumidityLevel, &out.HumidityLevel},
	} {
		if *f.in != nil {
			*f.out = model.Int(**f.in)
		}
	}
	return out
}

func milestones(defs []achievement.Definition, at time.Time) []model.Insight {
	out := make([]model.Insight, 0, len(defs))
	for _, d := range defs {
		out = append(out, model.Insight{
			ID:        uuid.Must(uuid.NewV4()),
			Type:      model.InsightMilestone,
			Title:     "Achievement unlocked: " + d.Name,
			Message:   d.Description,
			CreatedAt: at,
		})
	}
	return out
}
