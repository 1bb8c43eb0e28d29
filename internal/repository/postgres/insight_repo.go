package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
)

// InsightRepo implements repository.InsightRepository using PostgreSQL.
type InsightRepo struct{ db *DB }

// NewInsightRepo constructs an insight repository.
func NewInsightRepo(db *DB) *InsightRepo { return &InsightRepo{db: db} }

const insertInsightSQL = `
INSERT INTO insights (id, user_id, plant_id, type, title, message, created_at, dismissed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

func insertInsight(ctx context.Context, ex execer, userID uuid.UUID, in model.Insight) error {
	_, err := ex.Exec(ctx, insertInsightSQL,
		in.ID, userID, in.PlantID, string(in.Type), in.Title, in.Message, in.CreatedAt, in.Dismissed)
	return err
}

// AddInsight inserts a single insight.
func (r *InsightRepo) AddInsight(ctx context.Context, userID uuid.UUID, in model.Insight) error {
	return storeErr("add insight", insertInsight(ctx, r.db.Pool, userID, in))
}

// ListInsights returns insights newest first.
func (r *InsightRepo) ListInsights(ctx context.Context, userID uuid.UUID) ([]model.Insight, error) {
	const q = `
SELECT id, plant_id, type, title, message, created_at, dismissed
FROM insights WHERE user_id=$1
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, storeErr("list insights", err)
	}
	defer rows.Close()

	out := make([]model.Insight, 0)
	for rows.Next() {
		var (
			in  model.Insight
			typ string
		)
		if err = rows.Scan(&in.ID, &in.PlantID, &typ, &in.Title, &in.Message, &in.CreatedAt, &in.Dismissed); err != nil {
			return nil, storeErr("list insights", err)
		}
		in.Type = model.InsightType(typ)
		out = append(out, in)
	}
	return out, storeErr("list insights", rows.Err())
}

// DismissInsight soft-deletes an insight.
func (r *InsightRepo) DismissInsight(ctx context.Context, userID, insightID uuid.UUID) error {
	const q = `UPDATE insights SET dismissed=true WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, insightID, userID)
	if err != nil {
		return storeErr("dismiss insight", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insight %s: %w", insightID, errs.ErrNotFound)
	}
	return nil
}
