package routing

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines sheet configuration persistence. Lookup methods return
// nil (not an error) when nothing matches so the resolver cascade can fall
// through; SetDefault must atomically clear the flag on every other config.
type Repository interface {
	Create(ctx context.Context, cfg *SheetConfig) error
	Update(ctx context.Context, cfg *SheetConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*SheetConfig, error)
	List(ctx context.Context) ([]*SheetConfig, error)

	// GetActiveForUser returns the active config directly assigned to the user, or nil
	GetActiveForUser(ctx context.Context, userID uuid.UUID) (*SheetConfig, error)

	// GetActiveForEntity returns the active config assigned to the entity, or nil
	GetActiveForEntity(ctx context.Context, entityID string) (*SheetConfig, error)

	// GetActiveDefaults returns all active default configs ordered by most
	// recently updated first; by convention at most one should exist
	GetActiveDefaults(ctx context.Context) ([]*SheetConfig, error)

	// SetDefault marks one config as default and clears all others in a single transaction
	SetDefault(ctx context.Context, id uuid.UUID) error

	// SetStatus flips a config's status; deactivation is never a hard delete
	SetStatus(ctx context.Context, id uuid.UUID, status ConfigStatus) error

	// RecordWrite updates usage stats after a successful sink append
	RecordWrite(ctx context.Context, id uuid.UUID) error

	AssignToUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	AssignToEntity(ctx context.Context, id uuid.UUID, entityID string) error

	GetProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
	UpsertProfile(ctx context.Context, profile *UserProfile) error
}

// ErrConfigNotFound indicates a missing sheet configuration
type ErrConfigNotFound struct {
	ConfigID uuid.UUID
}

func (e ErrConfigNotFound) Error() string {
	return "sheet config not found: " + e.ConfigID.String()
}

// Is matches any ErrConfigNotFound when the target carries a nil ID
func (e ErrConfigNotFound) Is(target error) bool {
	t, ok := target.(ErrConfigNotFound)
	if !ok {
		return false
	}
	if t.ConfigID == uuid.Nil {
		return true
	}
	return e.ConfigID == t.ConfigID
}
