package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
)

// TaskRepo implements repository.TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const insertTaskSQL = `
INSERT INTO care_tasks (id, user_id, plant_id, action, due_date, completed, completed_at, snoozed_until, xp_earned)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

// insertTask relies on the partial unique index over open (plant_id, action) pairs.
func insertTask(ctx context.Context, ex execer, userID uuid.UUID, t model.CareTask) error {
	_, err := ex.Exec(ctx, insertTaskSQL,
		t.ID, userID, t.PlantID, string(t.Action), t.DueDate, t.Completed, t.CompletedDate, t.SnoozedUntil, t.XPEarned)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s for plant %s: %w", t.Action, t.PlantID, errs.ErrPendingExists)
	}
	return err
}

// ListTasks returns every task of the user ordered by due date.
func (r *TaskRepo) ListTasks(ctx context.Context, userID uuid.UUID) ([]model.CareTask, error) {
	const q = `
SELECT id, plant_id, action, due_date, completed, completed_at, snoozed_until, xp_earned
FROM care_tasks WHERE user_id=$1
ORDER BY due_date ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	out := make([]model.CareTask, 0)
	for rows.Next() {
		var (
			t      model.CareTask
			action string
		)
		if err = rows.Scan(&t.ID, &t.PlantID, &action, &t.DueDate, &t.Completed, &t.CompletedDate, &t.SnoozedUntil, &t.XPEarned); err != nil {
			return nil, storeErr("list tasks", err)
		}
		t.Action = model.CareAction(action)
		out = append(out, t)
	}
	return out, storeErr("list tasks", rows.Err())
}

// SnoozeTask moves the due date of an open task.
func (r *TaskRepo) SnoozeTask(ctx context.Context, userID uuid.UUID, t model.CareTask) error {
	const q = `UPDATE care_tasks SET due_date=$3, snoozed_until=$4 WHERE id=$1 AND user_id=$2 AND NOT completed`
	tag, err := r.db.Pool.Exec(ctx, q, t.ID, userID, t.DueDate, t.SnoozedUntil)
	if err != nil {
		return storeErr("snooze task", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open task %s: %w", t.ID, errs.ErrNotFound)
	}
	return nil
}

// CommitCompletion closes the task, spawns the next one, merges the plant's
// last-care entry, appends the care event and writes progress, all in one
// transaction. The close is conditional on the task still being open, so a
// concurrent completion elsewhere surfaces as errs.ErrAlreadyCompleted; a
// profile computed from an old version surfaces as errs.ErrConflict.
func (r *TaskRepo) CommitCompletion(ctx context.Context, userID uuid.UUID, c model.Completion) error {
	prefs, err := encodePrefs(c.Profile.Preferences)
	if err != nil {
		return err
	}
	return r.db.inTx(ctx, "complete task", func(tx pgx.Tx) error {
		const closeTask = `
UPDATE care_tasks SET completed=true, completed_at=$3, xp_earned=$4
WHERE id=$1 AND user_id=$2 AND NOT completed`
		tag, err := tx.Exec(ctx, closeTask, c.Task.ID, userID, c.Task.CompletedDate, c.Task.XPEarned)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return taskState(ctx, tx, userID, c.Task.ID)
		}

		if err = insertTask(ctx, tx, userID, c.Next); err != nil {
			return err
		}

		if err = recordCare(ctx, tx, userID, c.PlantID, c.Event); err != nil {
			return err
		}
		return writeProgress(ctx, tx, userID, c.Profile, prefs, c.Unlocks, c.Insights)
	})
}

// taskState explains why a conditional close touched no row.
func taskState(ctx context.Context, tx pgx.Tx, userID, taskID uuid.UUID) error {
	const q = `SELECT completed FROM care_tasks WHERE id=$1 AND user_id=$2`
	var completed bool
	if err := tx.QueryRow(ctx, q, taskID, userID).Scan(&completed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("task %s: %w", taskID, errs.ErrNotFound)
		}
		return err
	}
	if completed {
		return fmt.Errorf("task %s: %w", taskID, errs.ErrAlreadyCompleted)
	}
	return fmt.Errorf("task %s: %w", taskID, errs.ErrNotFound)
}
