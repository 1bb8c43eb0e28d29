package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/plant-keeper/internal/achievement"
	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/progress"
)

// ProfilePatch lists profile fields to change.
type ProfilePatch struct {
	Username        *string
	ExperienceLevel *model.ExperienceLevel
	Preferences     PreferencesPatch
}

// PreferencesPatch lists preference fields to change; nil fields are left alone.
type PreferencesPatch struct {
	NotificationsEnabled *bool
	MorningReminders     *bool
	WeeklySummaries      *bool
	Units                *model.Units
}

func (patch PreferencesPatch) apply(p model.Preferences) (model.Preferences, error) {
	if patch.Units != nil {
		if !patch.Units.Valid() {
			return p, fmt.Errorf("%w: unknown units %q", errs.ErrValidation, *patch.Units)
		}
		p.Units = *patch.Units
	}
	for _, f := range []struct{ dst, src *bool }{
		{&p.NotificationsEnabled, patch.NotificationsEnabled},
		{&p.MorningReminders, patch.MorningReminders},
		{&p.WeeklySummaries, patch.WeeklySummaries},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return p, nil
}

// Profile returns the user's progress document with level fields fresh.
func (s *CareService) Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	defer release()
	return progress.Refresh(ss.profile), nil
}

// UpdateProfile changes the username, experience level or preferences.
func (s *CareService) UpdateProfile(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (p model.Profile, err error) {
	err = s.retry(userID, "update profile", func() (err error) {
		p, err = s.updateProfile(ctx, userID, patch)
		return err
	})
	return p, err
}

func (s *CareService) updateProfile(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (model.Profile, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	defer release()

	p := ss.profile
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" {
			return model.Profile{}, fmt.Errorf("%w: empty username", errs.ErrValidation)
		}
		p.Username = name
	}
	if patch.ExperienceLevel != nil {
		if !patch.ExperienceLevel.Valid() {
			return model.Profile{}, fmt.Errorf("%w: unknown experience level %q", errs.ErrValidation, *patch.ExperienceLevel)
		}
		p.ExperienceLevel = *patch.ExperienceLevel
	}
	if p.Preferences, err = patch.Preferences.apply(p.Preferences); err != nil {
		return model.Profile{}, err
	}
	p = progress.Refresh(p)

	if err := s.store.SaveProfile(ctx, userID, p); err != nil {
		return model.Profile{}, ss.failed(fmt.Errorf("save profile: %w", err))
	}
	p.Version++
	ss.profile = p

	s.log.Info("profile updated", zap.String("user_id", userID.String()))
	s.publish(ctx, userID, nil)
	return p, nil
}

// Achievements returns every badge with the user's progress toward it.
func (s *CareService) Achievements(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	return achievement.Views(achievement.StatsOf(ss.profile, len(ss.plants)), ss.unlocks), nil
}

// Insights lists insights newest first. Dismissed ones are included only
// when all is set.
func (s *CareService) Insights(ctx context.Context, userID uuid.UUID, all bool) ([]model.Insight, error) {
	if userID.IsNil() {
		return nil, errs.ErrUnauthorized
	}
	list, err := s.store.ListInsights(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	if all {
		return list, nil
	}
	out := make([]model.Insight, 0, len(list))
	for _, in := range list {
		if !in.Dismissed {
			out = append(out, in)
		}
	}
	return out, nil
}

// AddInsight stores a tip or warning. Milestones and memorials are written
// by the engine itself.
func (s *CareService) AddInsight(ctx context.Context, userID uuid.UUID, in model.Insight) (model.Insight, error) {
	if userID.IsNil() {
		return model.Insight{}, errs.ErrUnauthorized
	}
	if in.Type != model.InsightTip && in.Type != model.InsightWarning {
		return model.Insight{}, fmt.Errorf("%w: insight type %q", errs.ErrValidation, in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Insight{}, fmt.Errorf("%w: empty insight title", errs.ErrValidation)
	}
	in.ID = uuid.Must(uuid.NewV4())
	in.CreatedAt = s.now()
	in.Dismissed = false
	if err := s.store.AddInsight(ctx, userID, in); err != nil {
		return model.Insight{}, fmt.Errorf("add insight: %w", err)
	}
	return in, nil
}

// DismissInsight hides an insight.
func (s *CareService) DismissInsight(ctx context.Context, userID, insightID uuid.UUID) error {
	if userID.IsNil() {
		return errs.ErrUnauthorized
	}
	if err := s.store.DismissInsight(ctx, userID, insightID); err != nil {
		return fmt.Errorf("dismiss insight: %w", err)
	}
	return nil
}

// AssistantContext summarizes the user's garden for the chat assistant.
func (s *CareService) AssistantContext(ctx context.Context, userID uuid.UUID) (model.AssistantContext, error) {
	ss, release, err := s.acquire(ctx, userID)
	if err != nil {
		return model.AssistantContext{}, err
	}
	defer release()

	now := s.now()
	out := model.AssistantContext{
		Plants:       make([]model.AssistantPlant, 0, len(ss.plants)),
		PendingTasks: len(ss.tasks.Incomplete()),
		OverdueTasks: len(ss.tasks.Overdue(now)),
		StreakDays:   ss.profile.StreakDays,
		LevelName:    progress.Refresh(ss.profile).LevelName,
	}
	for _, p := range ss.sortedPlants() {
		out.Plants = append(out.Plants, model.AssistantPlant{
			Nickname:    p.Nickname,
			Species:     p.Species,
			HealthScore: model.OrFull(p.HealthScore),
		})
	}
	return out, nil
}
