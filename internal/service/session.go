package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/model"
	"github.com/and161185/plant-keeper/internal/progress"
	"github.com/and161185/plant-keeper/internal/tasks"
)

// DefaultUsername is given to users that have never saved a profile.
const DefaultUsername = "Plant Lover"

type session struct {
	mu     sync.Mutex
	stale  atomic.Bool
	loaded bool

	// guarded by CareService.mu
	refs     int
	lastUsed time.Time

	plants  map[uuid.UUID]model.Plant
	tasks   *tasks.Store
	profile model.Profile
	unlocks map[string]time.Time
}

// acquire returns the user's session locked and loaded. The caller must
// invoke release exactly once.
func (s *CareService) acquire(ctx context.Context, userID uuid.UUID) (*session, func(), error) {
	if userID.IsNil() {
		return nil, nil, errs.ErrUnauthorized
	}

	s.mu.Lock()
	ss, ok := s.sessions[userID]
	if !ok {
		ss = &session{}
		s.sessions[userID] = ss
	}
	ss.refs++
	s.mu.Unlock()

	release := func() {
		ss.mu.Unlock()
		s.mu.Lock()
		ss.refs--
		ss.lastUsed = s.now()
		s.mu.Unlock()
	}

	ss.mu.Lock()
	if !ss.loaded || ss.stale.Swap(false) {
		if err := s.load(ctx, userID, ss); err != nil {
			ss.loaded = false
			release()
			return nil, nil, err
		}
	}
	return ss, release, nil
}

// load reads the user's documents in parallel and replaces the session state.
// Stored timestamps are read in the service location so calendar-day rules
// see the same dates whatever zone the store hands back.
func (s *CareService) load(ctx context.Context, userID uuid.UUID, ss *session) error {
	var (
		plants  []model.Plant
		list    []model.CareTask
		profile model.Profile
		unlocks []model.Unlock
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		plants, err = s.store.ListPlants(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		list, err = s.store.ListTasks(gctx, userID)
		return err
	})
	g.Go(func() error {
		p, err := s.store.GetProfile(gctx, userID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			profile = newProfile(userID)
		case err != nil:
			return err
		default:
			profile = progress.Refresh(p.In(s.loc))
		}
		return nil
	})
	g.Go(func() (err error) {
		unlocks, err = s.store.ListUnlocks(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	for i := range list {
		list[i] = list[i].In(s.loc)
	}
	ts, err := tasks.Load(list)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	ss.plants = make(map[uuid.UUID]model.Plant, len(plants))
	for _, p := range plants {
		ss.plants[p.ID] = p.In(s.loc)
	}
	ss.tasks = ts
	ss.profile = profile
	ss.unlocks = make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		ss.unlocks[u.AchievementID] = u.UnlockedAt.In(s.loc)
	}
	ss.loaded = true

	s.log.Debug("session loaded",
		zap.String("user_id", userID.String()),
		zap.Int("plants", len(plants)),
		zap.Int("tasks", ts.Len()),
	)
	return nil
}

// evictIdle drops unused sessions idle for longer than the TTL.
func (s *CareService) evictIdle() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ss := range s.sessions {
		if ss.refs == 0 && now.Sub(ss.lastUsed) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// failed marks the session for a re-read after a write error; the store may
// hold state the session does not know about.
func (ss *session) failed(err error) error {
	ss.stale.Store(true)
	return err
}

func newProfile(userID uuid.UUID) model.Profile {
	return progress.Refresh(model.Profile{
		UserID:          userID,
		Username:        DefaultUsername,
		ExperienceLevel: model.ExperienceBeginner,
		Preferences:     model.DefaultPreferences(),
	})
}

func (ss *session) plant(id uuid.UUID) (model.Plant, error) {
	p, ok := ss.plants[id]
	if !ok {
		return model.Plant{}, fmt.Errorf("plant %s: %w", id, errs.ErrNotFound)
	}
	return p, nil
}

func (ss *session) mergeUnlocks(list []model.Unlock) {
	for _, u := range list {
		if _, ok := ss.unlocks[u.AchievementID]; !ok {
			ss.unlocks[u.AchievementID] = u.UnlockedAt
		}
	}
}
