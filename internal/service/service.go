// Package service orchestrates the business operations over a
// store.Repository. Handlers validate transport concerns and call in here;
// the authenticated actor travels on the context.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cafeops/backend/internal/cache"
	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/notify"
	"cafeops/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	cache             cache.Cache
	notifier          notify.Notifier
	log               zerolog.Logger
	lowStockThreshold int
	unpaidOrderAge    time.Duration
}

// Options carries construction-time tunables. The low-stock threshold is
// fixed per instance, not mutable at runtime.
type Options struct {
	LowStockThreshold int
	UnpaidOrderAge    time.Duration
}

func New(repo store.Repository, c cache.Cache, notifier notify.Notifier, log zerolog.Logger, opts Options) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if opts.LowStockThreshold < 1 {
		opts.LowStockThreshold = 5
	}
	if opts.UnpaidOrderAge <= 0 {
		opts.UnpaidOrderAge = time.Hour
	}

	return &Service{
		repo:              repo,
		cache:             c,
		notifier:          notifier,
		log:               log,
		lowStockThreshold: opts.LowStockThreshold,
		unpaidOrderAge:    opts.UnpaidOrderAge,
	}
}

// requirePermission resolves the actor and checks the capability. Admin
// passes every check by role, before the permission table is consulted.
func (s *Service) requirePermission(ctx context.Context, permission string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required: %w", store.ErrForbidden)
	}
	if !actor.Can(permission) {
		return actor, fmt.Errorf("missing %s permission: %w", permission, store.ErrForbidden)
	}
	return actor, nil
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required: %w", store.ErrForbidden)
	}
	return actor, nil
}

// sendNotification persists a notification row and hands it to the delivery
// hook. Both steps are best-effort for callers: failures are logged, never
// returned, so a notification problem cannot fail a sale.
func (s *Service) sendNotification(ctx context.Context, n domain.Notification) {
	created, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		s.log.Warn().Err(err).Str("type", n.Type).Msg("failed to persist notification")
		return
	}
	if err := s.notifier.Notify(ctx, *created); err != nil {
		s.log.Warn().Err(err).Int64("notification_id", created.ID).Msg("notification delivery failed")
	}
}

func clampLimit(limit int, fallback int, max int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > max {
		limit = max
	}
	return limit
}
