// Package repository defines storage interfaces implemented by concrete backends.
//
// Every method is scoped to one user. Methods that take a change set
// (CreatePlant, CommitCompletion, RetirePlant, LogCare) apply it
// atomically: either every part is visible to later reads or none is.
//
// Callers may hold stale copies of the documents, so writes never replace
// a stored document wholesale. Plant writes touch only the fields they
// name and merge last-care times. Profile writes carry the Version they
// were computed from and fail with errs.ErrConflict when the stored
// profile has moved on.
package repository

import (
	"context"

	"github.com/and161185/plant-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PlantRepository stores plants together with their care history.
type PlantRepository interface {
	// CreatePlant inserts the plant, its seed tasks, the updated profile,
	// any unlocks and milestone insights.
	CreatePlant(ctx context.Context, userID uuid.UUID, c model.PlantCreation) error
	// UpdatePlant writes the fields named by edit. Last-care times and
	// history are not touched.
	UpdatePlant(ctx context.Context, userID, plantID uuid.UUID, edit model.PlantEdit) error
	// LogCare appends ev to the plant's history and merges its last-care
	// time without touching tasks or the profile.
	LogCare(ctx context.Context, userID, plantID uuid.UUID, ev model.CareEvent) error
	// DeletePlant removes the plant and all of its tasks and history.
	DeletePlant(ctx context.Context, userID, plantID uuid.UUID) error
	// RetirePlant stores the memorial insight and deletes the plant.
	RetirePlant(ctx context.Context, userID, plantID uuid.UUID, memorial model.Insight) error
	// ListPlants returns the user's plants ordered by date added.
	ListPlants(ctx context.Context, userID uuid.UUID) ([]model.Plant, error)
}

// TaskRepository stores care tasks.
type TaskRepository interface {
	// ListTasks returns all tasks of the user, pending and completed.
	ListTasks(ctx context.Context, userID uuid.UUID) ([]model.CareTask, error)
	// SnoozeTask persists the new due date of an open task.
	SnoozeTask(ctx context.Context, userID uuid.UUID, t model.CareTask) error
	// CommitCompletion writes a full completion change set.
	CommitCompletion(ctx context.Context, userID uuid.UUID, c model.Completion) error
}

// ProfileRepository stores the per-user progress document.
type ProfileRepository interface {
	// GetProfile returns errs.ErrNotFound when the user has no profile yet.
	GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error)
	// SaveProfile writes p when the stored version equals p.Version
	// (0 when no profile exists). The stored version becomes p.Version+1.
	SaveProfile(ctx context.Context, userID uuid.UUID, p model.Profile) error
}

// AchievementRepository exposes the user's unlocked badges. Unlocks are
// written as part of change sets and never overwritten.
type AchievementRepository interface {
	ListUnlocks(ctx context.Context, userID uuid.UUID) ([]model.Unlock, error)
}

// InsightRepository stores insights.
type InsightRepository interface {
	AddInsight(ctx context.Context, userID uuid.UUID, in model.Insight) error
	// ListInsights returns insights newest first, dismissed ones included.
	ListInsights(ctx context.Context, userID uuid.UUID) ([]model.Insight, error)
	DismissInsight(ctx context.Context, userID, insightID uuid.UUID) error
}

// Store is the complete document store.
type Store interface {
	PlantRepository
	TaskRepository
	ProfileRepository
	AchievementRepository
	InsightRepository

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
