package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
)

var day0 = time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)

func task(plant uuid.UUID, a model.CareAction, due time.Time) model.CareTask {
	return model.CareTask{ID: uuid.Must(uuid.NewV4()), PlantID: plant, Action: a, DueDate: due}
}

func TestInsert_OnePendingPerPair(t *testing.T) {
	s := New()
	p := uuid.Must(uuid.NewV4())

	require.NoError(t, s.Insert(task(p, model.Water, day0)))
	require.NoError(t, s.Insert(task(p, model.Mist, day0)))

	err := s.Insert(task(p, model.Water, day0.Add(time.Hour)))
	require.ErrorIs(t, err, errs.ErrPendingExists)
	require.False(t, s.CanInsert(p, model.Water))
	require.True(t, s.CanInsert(p, model.Rotate))

	done := task(p, model.Water, day0)
	done.Completed = true
	require.NoError(t, s.Insert(done), "completed tasks never occupy the pending slot")
	require.Equal(t, 3, s.Len())
}

func TestComplete_FreesSlotAndIsNotRepeatable(t *testing.T) {
	s := New()
	p := uuid.Must(uuid.NewV4())
	w := task(p, model.Water, day0)
	require.NoError(t, s.Insert(w))

	at := day0.Add(2 * time.Hour)
	got, err := s.Complete(w.ID, at, 25)
	require.NoError(t, err)
	require.True(t, got.Completed)
	require.Equal(t, at, *got.CompletedDate)
	require.Equal(t, 25, got.XPEarned)
	require.True(t, s.CanInsert(p, model.Water))

	_, err = s.Complete(w.ID, at, 25)
	require.ErrorIs(t, err, errs.ErrAlreadyCompleted)

	_, err = s.Complete(uuid.Must(uuid.NewV4()), at, 25)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSnooze_KeepsSinglePendingTask(t *testing.T) {
	s := New()
	p := uuid.Must(uuid.NewV4())
	w := task(p, model.Water, day0)
	require.NoError(t, s.Insert(w))

	until := day0.Add(72 * time.Hour)
	got, err := s.Snooze(w.ID, until)
	require.NoError(t, err)
	require.Equal(t, until, got.DueDate)
	require.Equal(t, until, *got.SnoozedUntil)
	require.False(t, got.Completed)

	pend, ok := s.Pending(p, model.Water)
	require.True(t, ok)
	require.Equal(t, w.ID, pend.ID)
	require.Len(t, s.ForPlant(p), 1)
}

func TestViews(t *testing.T) {
	s := New()
	p := uuid.Must(uuid.NewV4())
	now := day0.Add(4 * time.Hour)

	overdue := task(p, model.Water, day0.Add(-24*time.Hour))
	today := task(p, model.Mist, day0.Add(10*time.Hour))
	later := task(p, model.Rotate, day0.Add(72*time.Hour))
	doneToday := task(p, model.Fertilize, day0.Add(-48*time.Hour))
	for _, x := range []model.CareTask{overdue, today, later, doneToday} {
		require.NoError(t, s.Insert(x))
	}
	_, err := s.Complete(doneToday.ID, now, 25)
	require.NoError(t, err)

	require.Equal(t, []uuid.UUID{overdue.ID}, ids(s.Overdue(now)))
	require.Equal(t, []uuid.UUID{today.ID}, ids(s.DueOn(now)))
	require.Equal(t, []uuid.UUID{later.ID}, ids(s.Upcoming(now)))
	require.Equal(t, []uuid.UUID{doneToday.ID}, ids(s.CompletedOn(now)))
	require.Len(t, s.Incomplete(), 3)
	require.Equal(t, []uuid.UUID{doneToday.ID, overdue.ID, today.ID, later.ID}, ids(s.All()))
}

func TestRemovePlantAndClone(t *testing.T) {
	s := New()
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	require.NoError(t, s.Insert(task(a, model.Water, day0)))
	require.NoError(t, s.Insert(task(a, model.Mist, day0)))
	require.NoError(t, s.Insert(task(b, model.Water, day0)))

	c := s.Clone()
	require.Equal(t, 2, s.RemovePlant(a))
	require.Equal(t, 1, s.Len())
	require.True(t, s.CanInsert(a, model.Water))

	require.Equal(t, 3, c.Len(), "clone is independent")
	require.False(t, c.CanInsert(a, model.Water))
}

func TestLoad_RejectsDuplicatePending(t *testing.T) {
	p := uuid.Must(uuid.NewV4())
	_, err := Load([]model.CareTask{task(p, model.Water, day0), task(p, model.Water, day0)})
	require.ErrorIs(t, err, errs.ErrPendingExists)
}

func ids(list []model.CareTask) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}
