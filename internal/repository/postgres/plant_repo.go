package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
)

// execer is the write side shared by the pool and transactions.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PlantRepo implements repository.PlantRepository using PostgreSQL.
type PlantRepo struct{ db *DB }

// NewPlantRepo constructs a plant repository.
func NewPlantRepo(db *DB) *PlantRepo { return &PlantRepo{db: db} }

const insertPlantSQL = `
INSERT INTO plants (id, user_id, nickname, species, scientific_name, photo, personality, date_added,
	frequency, last_care, condition, health_score, hydration_level, light_exposure, humidity_level)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

// updatePlantSQL leaves NULL parameters at their stored value; last_care
// belongs to completions and is never written here.
const updatePlantSQL = `
UPDATE plants SET
	nickname = COALESCE($3, nickname),
	species = COALESCE($4, species),
	scientific_name = COALESCE($5, scientific_name),
	photo = COALESCE($6, photo),
	personality = COALESCE($7, personality),
	frequency = frequency || $8::jsonb,
	condition = COALESCE($9, condition),
	health_score = COALESCE($10, health_score),
	hydration_level = COALESCE($11, hydration_level),
	light_exposure = COALESCE($12, light_exposure),
	humidity_level = COALESCE($13, humidity_level)
WHERE id=$1 AND user_id=$2`

const deletePlantSQL = `DELETE FROM plants WHERE id=$1 AND user_id=$2`

// CreatePlant inserts the plant and everything created alongside it in one transaction.
func (r *PlantRepo) CreatePlant(ctx context.Context, userID uuid.UUID, c model.PlantCreation) error {
	freq, lastCare, err := encodeCare(c.Plant)
	if err != nil {
		return err
	}
	prefs, err := encodePrefs(c.Profile.Preferences)
	if err != nil {
		return err
	}
	return r.db.inTx(ctx, "create plant", func(tx pgx.Tx) error {
		p := c.Plant
		if _, err := tx.Exec(ctx, insertPlantSQL,
			p.ID, userID, p.Nickname, p.Species, p.ScientificName, p.Photo, string(p.Personality), p.DateAdded,
			freq, lastCare, string(p.Condition), p.HealthScore, p.HydrationLevel, p.LightExposure, p.HumidityLevel,
		); err != nil {
			return err
		}
		for _, t := range c.Tasks {
			if err := insertTask(ctx, tx, userID, t); err != nil {
				return err
			}
		}
		return writeProgress(ctx, tx, userID, c.Profile, prefs, c.Unlocks, c.Insights)
	})
}

// UpdatePlant writes only the columns named by edit.
func (r *PlantRepo) UpdatePlant(ctx context.Context, userID, plantID uuid.UUID, edit model.PlantEdit) error {
	sched := edit.Frequency
	if sched == nil {
		sched = model.Schedule{}
	}
	freq, err := json.Marshal(sched)
	if err != nil {
		return codecError{fmt.Errorf("encode frequency: %w", err)}
	}
	tag, err := r.db.Pool.Exec(ctx, updatePlantSQL,
		plantID, userID, edit.Nickname, edit.Species, edit.ScientificName, edit.Photo, textOf(edit.Personality),
		freq, textOf(edit.Condition), edit.HealthScore, edit.HydrationLevel, edit.LightExposure, edit.HumidityLevel,
	)
	if err != nil {
		return storeErr("update plant", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	return nil
}

// LogCare records a care event outside any task in one transaction.
func (r *PlantRepo) LogCare(ctx context.Context, userID, plantID uuid.UUID, ev model.CareEvent) error {
	return r.db.inTx(ctx, "log care", func(tx pgx.Tx) error {
		return recordCare(ctx, tx, userID, plantID, ev)
	})
}

// recordCareSQL moves last_care forward only and refills the vital the
// action restores.
const recordCareSQL = `
UPDATE plants SET
	last_care = CASE
		WHEN (last_care->>$3::text)::timestamptz > $4::timestamptz THEN last_care
		ELSE last_care || jsonb_build_object($3::text, $4::timestamptz)
	END,
	hydration_level = CASE WHEN $3 = 'water' THEN 100 ELSE hydration_level END,
	humidity_level = CASE WHEN $3 = 'mist' THEN 100 ELSE humidity_level END
WHERE id=$1 AND user_id=$2`

const insertEventSQL = `
INSERT INTO care_events (id, user_id, plant_id, action, occurred_at, note)
VALUES ($1,$2,$3,$4,$5,$6)`

// recordCare merges ev into the stored plant and appends it to the history.
func recordCare(ctx context.Context, ex execer, userID, plantID uuid.UUID, ev model.CareEvent) error {
	tag, err := ex.Exec(ctx, recordCareSQL, plantID, userID, string(ev.Action), ev.Date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	_, err = ex.Exec(ctx, insertEventSQL, ev.ID, userID, plantID, string(ev.Action), ev.Date, ev.Note)
	return err
}

func textOf[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// DeletePlant removes a plant; tasks and history go with it through ON DELETE CASCADE.
func (r *PlantRepo) DeletePlant(ctx context.Context, userID, plantID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, deletePlantSQL, plantID, userID)
	if err != nil {
		return storeErr("delete plant", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
	}
	return nil
}

// RetirePlant stores the memorial and deletes the plant in one transaction.
func (r *PlantRepo) RetirePlant(ctx context.Context, userID, plantID uuid.UUID, memorial model.Insight) error {
	return r.db.inTx(ctx, "retire plant", func(tx pgx.Tx) error {
		if err := insertInsight(ctx, tx, userID, memorial); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, deletePlantSQL, plantID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("plant %s: %w", plantID, errs.ErrNotFound)
		}
		return nil
	})
}

// ListPlants loads plants and then their care history.
func (r *PlantRepo) ListPlants(ctx context.Context, userID uuid.UUID) ([]model.Plant, error) {
	const q = `
SELECT id, nickname, species, scientific_name, photo, personality, date_added,
	frequency, last_care, condition, health_score, hydration_level, light_exposure, humidity_level
FROM plants WHERE user_id=$1
ORDER BY date_added ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, storeErr("list plants", err)
	}
	defer rows.Close()

	out := make([]model.Plant, 0)
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			p                      model.Plant
			personality, condition string
			freq, lastCare         []byte
		)
		if err = rows.Scan(&p.ID, &p.Nickname, &p.Species, &p.ScientificName, &p.Photo, &personality, &p.DateAdded,
			&freq, &lastCare, &condition, &p.HealthScore, &p.HydrationLevel, &p.LightExposure, &p.HumidityLevel); err != nil {
			return nil, storeErr("list plants", err)
		}
		p.Personality = model.Personality(personality)
		p.Condition = model.Condition(condition)
		if err = decodeCare(&p, freq, lastCare); err != nil {
			return nil, err
		}
		p.CareHistory = []model.CareEvent{}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr("list plants", err)
	}
	rows.Close()

	const qe = `
SELECT plant_id, id, action, occurred_at, note
FROM care_events WHERE user_id=$1
ORDER BY occurred_at ASC, id ASC`
	ev, err := r.db.Pool.Query(ctx, qe, userID)
	if err != nil {
		return nil, storeErr("list care events", err)
	}
	defer ev.Close()
	for ev.Next() {
		var (
			plantID uuid.UUID
			e       model.CareEvent
			action  string
		)
		if err = ev.Scan(&plantID, &e.ID, &action, &e.Date, &e.Note); err != nil {
			return nil, storeErr("list care events", err)
		}
		e.Action = model.CareAction(action)
		if i, ok := index[plantID]; ok {
			out[i].CareHistory = append(out[i].CareHistory, e)
		}
	}
	return out, storeErr("list care events", ev.Err())
}

func encodeCare(p model.Plant) (freq, lastCare []byte, err error) {
	if freq, err = json.Marshal(p.Frequency); err != nil {
		return nil, nil, codecError{fmt.Errorf("encode frequency: %w", err)}
	}
	lc := p.LastCare
	if lc == nil {
		lc = map[model.CareAction]time.Time{}
	}
	if lastCare, err = json.Marshal(lc); err != nil {
		return nil, nil, codecError{fmt.Errorf("encode last care: %w", err)}
	}
	return freq, lastCare, nil
}

func decodeCare(p *model.Plant, freq, lastCare []byte) error {
	p.Frequency = model.Schedule{}
	p.LastCare = map[model.CareAction]time.Time{}
	if len(freq) > 0 {
		if err := json.Unmarshal(freq, &p.Frequency); err != nil {
			return codecError{fmt.Errorf("plant %s frequency: %w", p.ID, err)}
		}
	}
	if len(lastCare) > 0 {
		if err := json.Unmarshal(lastCare, &p.LastCare); err != nil {
			return codecError{fmt.Errorf("plant %s last care: %w", p.ID, err)}
		}
	}
	return nil
}
