package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/plant-keeper/internal/achievement"
	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/progress"
	"github.com/and161185/plant-keeper/internal/timeutil"
)

// CompleteResult is what a successful completion produced.
type CompleteResult struct {
	Task     model.CareTask      `json:"task"`
	Next     model.CareTask      `json:"next"`
	Profile  model.Profile       `json:"profile"`
	Unlocked []model.Achievement `json:"unlocked"`
}

// CompleteTask closes an open task, schedules the next occurrence from the
// plant's frequency, records the care event and awards XP. The whole change
// set is written in one store call; nothing changes when it fails.
//
// Completing a closed task returns errs.ErrAlreadyCompleted. A task whose
// plant is gone returns errs.ErrNotFound and is left untouched.
func (s *CareService) CompleteTask(ctx context.Context, userID, taskID uuid.UUID, note string) (res CompleteResult, err error) {
	err = s.retry(userID, "complete task", func() (err error) {
		res, err = s.completeTask(ctx, userID, taskID, note)
		return err
	})
	return res, err
}

func (s *CareService) completeTask(ctx context.Context, userID, taskID uuid.UUID, note string) (CompleteResult, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return CompleteResult{}, err
	}
	defer release()

	t, err := ss.tasks.Get(taskID)
	if err != nil {
		return CompleteResult{}, err
	}
	if t.Completed {
		return CompleteResult{}, fmt.Errorf("task %s: %w", taskID, errs.ErrAlreadyCompleted)
	}
	p, err := ss.plant(t.PlantID)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("task %s is orphaned: %w", taskID, err)
	}
	freq := p.Frequency.Days(t.Action)
	if freq <= 0 {
		return CompleteResult{}, fmt.Errorf("%w: %s every %d days", errs.ErrInvalidFrequency, t.Action, freq)
	}

	now := s.now()
	next := ss.tasks.Clone()
	closed, err := next.Complete(taskID, now, progress.TaskXP)
	if err != nil {
		return CompleteResult{}, err
	}
	spawned := model.CareTask{
		ID:      uuid.Must(uuid.NewV4()),
		PlantID: t.PlantID,
		Action:  t.Action,
		DueDate: timeutil.AddDays(now, freq),
	}
	if err := next.Insert(spawned); err != nil {
		return CompleteResult{}, err
	}

	ev := model.CareEvent{
		ID:     uuid.Must(uuid.NewV4()),
		Action: t.Action,
		Date:   now,
		Note:   strings.TrimSpace(note),
	}
	p = p.Clone()
	p.RecordCare(ev)

	prof := progress.Apply(ss.profile, progress.TaskXP, now)
	defs := achievement.Evaluate(achievement.TaskCompleted, achievement.StatsOf(prof, len(ss.plants)), ss.unlocks)
	unlocks := achievement.Unlocks(defs, now)

	err = s.store.CommitCompletion(ctx, userID, model.Completion{
		Task:     closed,
		Next:     spawned,
		PlantID:  p.ID,
		Event:    ev,
		Profile:  prof,
		Unlocks:  unlocks,
		Insights: milestones(defs, now),
	})
	if err != nil {
		return CompleteResult{}, ss.failed(fmt.Errorf("complete task: %w", err))
	}
	prof.Version++

	ss.tasks = next
	ss.plants[p.ID] = p
	ss.profile = prof
	ss.mergeUnlocks(unlocks)

	s.log.Info("task completed",
		zap.String("user_id", userID.String()),
		zap.String("task_id", taskID.String()),
		zap.String("action", string(t.Action)),
		zap.Int("xp", prof.XP),
		zap.Int("streak", prof.StreakDays),
	)
	s.publish(ctx, userID, &p.ID)

	res := CompleteResult{Task: closed, Next: spawned, Profile: prof, Unlocked: []model.Achievement{}}
	for _, a := range achievement.Views(achievement.StatsOf(prof, len(ss.plants)), ss.unlocks) {
		for _, d := range defs {
			if a.ID == d.ID {
				res.Unlocked = append(res.Unlocked, a)
			}
		}
	}
	return res, nil
}

// LogCare records care done outside the task list, e.g. an extra watering.
// The event joins the plant's history and moves its last-care time. No XP is
// awarded and pending tasks keep their due dates.
func (s *CareService) LogCare(ctx context.Context, userID, plantID uuid.UUID, action model.CareAction, note string) (model.Plant, error) {
	if !action.Valid() {
		return model.Plant{}, fmt.Errorf("%w: unknown care action %q", errs.ErrValidation, action)
	}

	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Plant{}, err
	}
	defer release()

	p, err := ss.plant(plantID)
	if err != nil {
		return model.Plant{}, err
	}
	ev := model.CareEvent{
		ID:     uuid.Must(uuid.NewV4()),
		Action: action,
		Date:   s.now(),
		Note:   strings.TrimSpace(note),
	}
	if err := s.store.LogCare(ctx, userID, plantID, ev); err != nil {
		return model.Plant{}, ss.failed(fmt.Errorf("log care: %w", err))
	}
	p = p.Clone()
	p.RecordCare(ev)
	ss.plants[p.ID] = p

	s.log.Info("care logged",
		zap.String("user_id", userID.String()),
		zap.String("plant_id", plantID.String()),
		zap.String("action", string(action)),
	)
	s.publish(ctx, userID, &plantID)
	return p.Clone(), nil
}

// SnoozeTask pushes an open task back by days. The new due date counts from
// the later of the current due date and now. No XP is awarded and no task
// is created.
func (s *CareService) SnoozeTask(ctx context.Context, userID, taskID uuid.UUID, days int) (model.CareTask, error) {
	if days < 1 {
		return model.CareTask{}, fmt.Errorf("%w: snooze by %d days", errs.ErrValidation, days)
	}

	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.CareTask{}, err
	}
	defer release()

	t, err := ss.tasks.Get(taskID)
	if err != nil {
		return model.CareTask{}, err
	}
	if t.Completed {
		return model.CareTask{}, fmt.Errorf("task %s: %w", taskID, errs.ErrAlreadyCompleted)
	}
	if _, err := ss.plant(t.PlantID); err != nil {
		return model.CareTask{}, fmt.Errorf("task %s is orphaned: %w", taskID, err)
	}

	base := t.DueDate
	if now := s.now(); now.After(base) {
		base = now
	}
	next := ss.tasks.Clone()
	snoozed, err := next.Snooze(taskID, timeutil.AddDays(base, days))
	if err != nil {
		return model.CareTask{}, err
	}
	if err := s.store.SnoozeTask(ctx, userID, snoozed); err != nil {
		return model.CareTask{}, ss.failed(fmt.Errorf("snooze task: %w", err))
	}
	ss.tasks = next

	s.log.Info("task snoozed",
		zap.String("user_id", userID.String()),
		zap.String("task_id", taskID.String()),
		zap.Int("days", days),
	)
	s.publish(ctx, userID, &t.PlantID)
	return snoozed, nil
}

// TaskView selects a subset of tasks.
type TaskView string

const (
	ViewAll            TaskView = "all"
	ViewPending        TaskView = "pending"
	ViewOverdue        TaskView = "overdue"
	ViewToday          TaskView = "today"
	ViewUpcoming       TaskView = "upcoming"
	ViewCompletedToday TaskView = "completed-today"
)

// ParseTaskView parses a view name; empty means ViewAll.
func ParseTaskView(s string) (TaskView, error) {
	switch v := TaskView(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewPending, ViewOverdue, ViewToday, ViewUpcoming, ViewCompletedToday:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown task view %q", errs.ErrValidation, s)
}

// Tasks lists tasks in view relative to day. A zero day means today.
func (s *CareService) Tasks(ctx context.Context, userID uuid.UUID, view TaskView, day time.Time) ([]model.CareTask, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if day.IsZero() {
		day = s.now()
	}
	switch view {
	case ViewAll, "":
		return ss.tasks.All(), nil
	case ViewPending:
		return ss.tasks.Incomplete(), nil
	case ViewOverdue:
		return ss.tasks.Overdue(day), nil
	case ViewToday:
		return ss.tasks.DueOn(day), nil
	case ViewUpcoming:
		return ss.tasks.Upcoming(day), nil
	case ViewCompletedToday:
		return ss.tasks.CompletedOn(day), nil
	}
	return nil, fmt.Errorf("%w: unknown task view %q", errs.ErrValidation, view)
}

// PlantTasks lists every task of one plant.
func (s *CareService) PlantTasks(ctx context.Context, userID, plantID uuid.UUID) ([]model.CareTask, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := ss.plant(plantID); err != nil {
		return nil, err
	}
	return ss.tasks.ForPlant(plantID), nil
}
