package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
)

// ProfileRepo implements repository.ProfileRepository and
// repository.AchievementRepository using PostgreSQL.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

// insertProfileSQL creates version 1; a row written meanwhile by another
// instance leaves it untouched and the caller sees a conflict.
const insertProfileSQL = `
INSERT INTO profiles (user_id, username, experience_level, xp, streak_days, longest_streak,
	total_plants_added, total_tasks_completed, last_active_date, preferences, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1)
ON CONFLICT (user_id) DO NOTHING`

const updateProfileSQL = `
UPDATE profiles SET username=$2, experience_level=$3, xp=$4, streak_days=$5, longest_streak=$6,
	total_plants_added=$7, total_tasks_completed=$8, last_active_date=$9, preferences=$10,
	version = version + 1
WHERE user_id=$1 AND version=$11`

// insertUnlockSQL never replaces an existing unlock time.
const insertUnlockSQL = `
INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
VALUES ($1,$2,$3)
ON CONFLICT (user_id, achievement_id) DO NOTHING`

// saveProfile writes p over the stored version p.Version. prefs is the
// encoded p.Preferences.
func saveProfile(ctx context.Context, ex execer, userID uuid.UUID, p model.Profile, prefs []byte) error {
	args := []any{userID, p.Username, string(p.ExperienceLevel), p.XP, p.StreakDays, p.LongestStreak,
		p.TotalPlantsAdded, p.TotalTasksCompleted, p.LastActiveDate, prefs}
	q := insertProfileSQL
	if p.Version > 0 {
		q = updateProfileSQL
		args = append(args, p.Version)
	}
	tag, err := ex.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s at version %d: %w", userID, p.Version, errs.ErrConflict)
	}
	return nil
}

func encodePrefs(p model.Preferences) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, codecError{fmt.Errorf("encode preferences: %w", err)}
	}
	return raw, nil
}

// writeProgress stores the profile, unlocks and insights produced by one command.
func writeProgress(ctx context.Context, ex execer, userID uuid.UUID, p model.Profile, prefs []byte, unlocks []model.Unlock, insights []model.Insight) error {
	if err := saveProfile(ctx, ex, userID, p, prefs); err != nil {
		return err
	}
	for _, u := range unlocks {
		if _, err := ex.Exec(ctx, insertUnlockSQL, userID, u.AchievementID, u.UnlockedAt); err != nil {
			return err
		}
	}
	for _, in := range insights {
		if err := insertInsight(ctx, ex, userID, in); err != nil {
			return err
		}
	}
	return nil
}

// GetProfile selects the profile row. Level fields are left for the caller to derive.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	const q = `
SELECT username, experience_level, xp, streak_days, longest_streak,
	total_plants_added, total_tasks_completed, last_active_date, preferences, version
FROM profiles WHERE user_id=$1`
	p := model.Profile{UserID: userID}
	var (
		level string
		prefs []byte
	)
	err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&p.Username, &level, &p.XP, &p.StreakDays, &p.LongestStreak,
		&p.TotalPlantsAdded, &p.TotalTasksCompleted, &p.LastActiveDate, &prefs, &p.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, fmt.Errorf("profile %s: %w", userID, errs.ErrNotFound)
		}
		return model.Profile{}, storeErr("get profile", err)
	}
	p.ExperienceLevel = model.ExperienceLevel(level)
	p.Preferences = model.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &p.Preferences); err != nil {
			return model.Profile{}, codecError{fmt.Errorf("profile %s preferences: %w", userID, err)}
		}
	}
	return p, nil
}

// SaveProfile writes the profile row if nobody else wrote it since p was read.
func (r *ProfileRepo) SaveProfile(ctx context.Context, userID uuid.UUID, p model.Profile) error {
	prefs, err := encodePrefs(p.Preferences)
	if err != nil {
		return err
	}
	return storeErr("save profile", saveProfile(ctx, r.db.Pool, userID, p, prefs))
}

// ListUnlocks returns the user's unlocked achievements, oldest first.
func (r *ProfileRepo) ListUnlocks(ctx context.Context, userID uuid.UUID) ([]model.Unlock, error) {
	const q = `
SELECT achievement_id, unlocked_at FROM achievement_unlocks
WHERE user_id=$1 ORDER BY unlocked_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, storeErr("list unlocks", err)
	}
	defer rows.Close()

	out := make([]model.Unlock, 0)
	for rows.Next() {
		var u model.Unlock
		if err = rows.Scan(&u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, storeErr("list unlocks", err)
		}
		out = append(out, u)
	}
	return out, storeErr("list unlocks", rows.Err())
}
