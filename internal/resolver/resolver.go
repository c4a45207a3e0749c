// Package resolver maps a user to exactly one destination ledger
// configuration. Resolution is a total function: every lookup step tolerates
// dangling or inactive references by falling through, and the cascade always
// terminates at a deployment-time legacy destination, so a receipt is never
// blocked from finalizing by routing.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/domain/routing"
)

// LegacyDestination is the system-wide fallback supplied at deployment time
type LegacyDestination struct {
	SheetIdentifier string
	Tab             string
}

// Resolver walks the routing priority cascade
type Resolver struct {
	repo    routing.Repository
	legacy  LegacyDestination
	auditor *auditlog.Recorder
	logger  *slog.Logger
}

// New creates a resolver with the given legacy fallback destination
func New(repo routing.Repository, legacy LegacyDestination, auditor *auditlog.Recorder, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:    repo,
		legacy:  legacy,
		auditor: auditor,
		logger:  logger,
	}
}

// Resolve returns the destination for a user's finalized receipts. Priority,
// first match wins: direct user assignment, the user's entity assignment, the
// active default config, the legacy fallback. Lookup errors behave like
// misses so a degraded store cannot block finalization.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) routing.Destination {
	now := time.Now()

	if cfg, err := r.repo.GetActiveForUser(ctx, userID); err != nil {
		r.logger.Warn("User-assignment lookup failed, falling through", "user_id", userID.String(), "error", err)
	} else if cfg != nil {
		return destinationFor(cfg, now)
	}

	if profile, err := r.repo.GetProfile(ctx, userID); err != nil {
		r.logger.Warn("User profile lookup failed, falling through", "user_id", userID.String(), "error", err)
	} else if profile != nil && profile.EntityID != "" {
		if cfg, err := r.repo.GetActiveForEntity(ctx, profile.EntityID); err != nil {
			r.logger.Warn("Entity-assignment lookup failed, falling through", "entity_id", profile.EntityID, "error", err)
		} else if cfg != nil {
			return destinationFor(cfg, now)
		}
	}

	if defaults, err := r.repo.GetActiveDefaults(ctx); err != nil {
		r.logger.Warn("Default config lookup failed, falling through", "error", err)
	} else if len(defaults) > 0 {
		if len(defaults) > 1 {
			// Deterministic pick: the repository orders by most recently
			// updated first.
			r.auditor.Log(ctx, auditlog.SeverityWarning, "resolve_destination",
				"multiple active default sheet configs, using most recently updated",
				auditlog.WithUser(userID),
				auditlog.WithContext("default_count", len(defaults)),
				auditlog.WithContext("chosen_config", defaults[0].ID.String()),
			)
		}
		return destinationFor(defaults[0], now)
	}

	r.logger.Info("No sheet config resolved, using legacy destination", "user_id", userID.String())
	return routing.Destination{
		SheetIdentifier: r.legacy.SheetIdentifier,
		Tab:             r.legacy.Tab,
	}
}

// Entity returns the user's entity id, or empty when the user has none.
// Lookup failures degrade to empty for the same reason resolution does.
func (r *Resolver) Entity(ctx context.Context, userID uuid.UUID) string {
	profile, err := r.repo.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		return ""
	}
	return profile.EntityID
}

func destinationFor(cfg *routing.SheetConfig, at time.Time) routing.Destination {
	id := cfg.ID
	return routing.Destination{
		ConfigID:        &id,
		SheetIdentifier: cfg.SheetIdentifier,
		Tab:             cfg.TabName(at),
	}
}
