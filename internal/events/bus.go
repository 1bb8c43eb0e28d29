// Package events carries cache invalidation signals between server instances.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Invalidation says that a user's documents changed in the store.
type Invalidation struct {
	UserID  uuid.UUID  `json:"userId"`
	PlantID *uuid.UUID `json:"plantId,omitempty"`
	Origin  string     `json:"origin"`
}

// Bus publishes and delivers invalidations.
type Bus interface {
	Publish(ctx context.Context, inv Invalidation) error
	// Subscribe delivers messages to onMsg until ctx is done.
	Subscribe(ctx context.Context, onMsg func(Invalidation)) error
	Close() error
}

// Nop is a Bus that drops everything. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Invalidation) error         { return nil }
func (Nop) Subscribe(context.Context, func(Invalidation)) error { return nil }
func (Nop) Close() error                                        { return nil }

type redisBus struct {
	log     *zap.Logger
	rdb     *redis.Client
	channel string
}

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(ctx context.Context, addr, channel string, log *zap.Logger) (Bus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "plant-keeper.invalidate"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With(zap.String("service", "RedisBus")),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, inv Invalidation) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, onMsg func(Invalidation)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				inv, err := decode(m.Payload)
				if err != nil {
					b.log.Warn("bad invalidation payload", zap.Error(err))
					continue
				}
				onMsg(inv)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func decode(payload string) (Invalidation, error) {
	var inv Invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		return Invalidation{}, err
	}
	if inv.UserID.IsNil() {
		return Invalidation{}, fmt.Errorf("invalidation without user id")
	}
	return inv, nil
}
