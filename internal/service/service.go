// Package service implements the care scheduling engine on top of a
// repository.Store.
//
// Each user gets one session that caches plants, tasks, the profile and
// unlocked badges. Every command locks the session, computes the change on
// copies, commits it to the store and only then updates the session. A
// failed write marks the session stale so the next command re-reads it.
// Commands rejected with errs.ErrConflict, because another instance wrote
// first, are re-run on a fresh read.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/plant-keeper/internal/errs"
	"github.com/and161185/plant-keeper/internal/events"
	"github.com/and161185/plant-keeper/internal/repository"
)

// commandAttempts bounds how often a command is re-run after a conflict.
const commandAttempts = 3

// Options tune a CareService. Zero values fall back to defaults.
type Options struct {
	SessionTTL time.Duration
	Location   *time.Location
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
	// Origin tags published invalidations; defaults to a random id.
	Origin string
	// SweepInterval is how often idle sessions are evicted; defaults to
	// a quarter of SessionTTL, at least a second.
	SweepInterval time.Duration
	// SubscribeBackoff is the first wait after a failed subscription. It
	// doubles up to a minute.
	SubscribeBackoff time.Duration
}

// CareService is the scheduling engine. It is safe for concurrent use;
// commands of one user are serialized.
type CareService struct {
	store   repository.Store
	bus     events.Bus
	log     *zap.Logger
	now     func() time.Time
	loc     *time.Location
	ttl     time.Duration
	origin  string
	sweep   time.Duration
	backoff time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewCareService constructs the engine. A nil bus disables invalidation.
func NewCareService(store repository.Store, bus events.Bus, log *zap.Logger, opt Options) *CareService {
	if bus == nil {
		bus = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opt.SessionTTL <= 0 {
		opt.SessionTTL = 30 * time.Minute
	}
	if opt.Location == nil {
		opt.Location = time.UTC
	}
	if opt.Now == nil {
		loc := opt.Location
		opt.Now = func() time.Time { return time.Now().In(loc) }
	}
	if opt.Origin == "" {
		opt.Origin = uuid.Must(uuid.NewV4()).String()
	}
	if opt.SweepInterval <= 0 {
		opt.SweepInterval = max(opt.SessionTTL/4, time.Second)
	}
	if opt.SubscribeBackoff <= 0 {
		opt.SubscribeBackoff = time.Second
	}
	return &CareService{
		store:    store,
		bus:      bus,
		log:      log.With(zap.String("service", "CareService")),
		now:      opt.Now,
		loc:      opt.Location,
		ttl:      opt.SessionTTL,
		origin:   opt.Origin,
		sweep:    opt.SweepInterval,
		backoff:  opt.SubscribeBackoff,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Run evicts idle sessions and keeps the invalidation subscription alive
// until ctx is done. A failing broker delays invalidations but never stops
// eviction.
func (s *CareService) Run(ctx context.Context) error {
	go s.subscribe(ctx)

	tick := time.NewTicker(s.sweep)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if n := s.evictIdle(); n > 0 {
				s.log.Debug("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

// subscribe retries the subscription with exponential backoff. Sessions
// cached while it was down may have missed invalidations and are marked
// stale once it is up.
func (s *CareService) subscribe(ctx context.Context) {
	wait := s.backoff
	for attempt := 1; ; attempt++ {
		err := s.bus.Subscribe(ctx, s.Invalidate)
		if err == nil {
			if attempt > 1 {
				s.log.Info("subscribed to invalidations", zap.Int("attempt", attempt))
				s.staleAll()
			}
			return
		}
		s.log.Warn("subscribe to invalidations failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, time.Minute)
	}
}

func (s *CareService) staleAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ss := range s.sessions {
		ss.stale.Store(true)
	}
}

// Invalidate marks the user's session stale unless the event came from this
// instance. The next command re-reads the store.
func (s *CareService) Invalidate(inv events.Invalidation) {
	if inv.Origin == s.origin {
		return
	}
	s.mu.Lock()
	ss, ok := s.sessions[inv.UserID]
	s.mu.Unlock()
	if ok {
		ss.stale.Store(true)
		s.log.Debug("session invalidated", zap.String("user_id", inv.UserID.String()), zap.String("origin", inv.Origin))
	}
}

// CloseSession drops the user's cached session, e.g. on sign-out. A
// session still held by a command is only marked stale so the user never
// has two sessions in one process; eviction drops it once released.
func (s *CareService) CloseSession(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[userID]
	if !ok {
		return
	}
	if ss.refs > 0 {
		ss.stale.Store(true)
		return
	}
	delete(s.sessions, userID)
}

// retry runs cmd again while it fails with errs.ErrConflict. The failed
// attempt has already marked the session stale, so the next one starts
// from a fresh read.
func (s *CareService) retry(userID uuid.UUID, op string, cmd func() error) error {
	var err error
	for attempt := 1; attempt <= commandAttempts; attempt++ {
		if err = cmd(); !errors.Is(err, errs.ErrConflict) {
			return err
		}
		s.log.Debug("stale write, retrying",
			zap.String("user_id", userID.String()),
			zap.String("op", op),
			zap.Int("attempt", attempt),
		)
	}
	return err
}

// Ping checks the store.
func (s *CareService) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func (s *CareService) publish(ctx context.Context, userID uuid.UUID, plantID *uuid.UUID) {
	inv := events.Invalidation{UserID: userID, PlantID: plantID, Origin: s.origin}
	if err := s.bus.Publish(ctx, inv); err != nil {
		s.log.Warn("publish invalidation failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
