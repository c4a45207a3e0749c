package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/receiptflow-ledger/internal/domain/routing"
	"github.com/receiptflow-ledger/internal/platform/persistence"
)

const sheetConfigColumns = `
	id, name, sheet_identifier, is_default, status, assignment_type,
	entity_ids, user_ids, tab_prefix, tab_per_month, health_status,
	rows_written, last_write_at, created_at, updated_at`

// SheetConfigRepository implements the routing.Repository interface for PostgreSQL
type SheetConfigRepository struct {
	db     *persistence.PostgresDB
	logger *slog.Logger
}

// NewSheetConfigRepository creates a new PostgreSQL sheet config repository
func NewSheetConfigRepository(logger *slog.Logger, db *persistence.PostgresDB) routing.Repository {
	return &SheetConfigRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new sheet configuration
func (r *SheetConfigRepository) Create(ctx context.Context, cfg *routing.SheetConfig) error {
	query := `
		INSERT INTO sheet_configs
			(id, name, sheet_identifier, is_default, status, assignment_type, entity_ids, user_ids,
			 tab_prefix, tab_per_month, health_status, rows_written, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		cfg.ID,
		cfg.Name,
		cfg.SheetIdentifier,
		cfg.IsDefault,
		cfg.Status,
		cfg.AssignmentType,
		cfg.EntityIDs,
		uuidStrings(cfg.UserIDs),
		cfg.TabPrefix,
		cfg.TabPerMonth,
		cfg.HealthStatus,
		cfg.RowsWritten,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create sheet config", "id", cfg.ID.String(), "error", err)
		return fmt.Errorf("failed to create sheet config: %w", err)
	}

	return nil
}

// Update replaces the mutable fields of an existing configuration
func (r *SheetConfigRepository) Update(ctx context.Context, cfg *routing.SheetConfig) error {
	query := `
		UPDATE sheet_configs
		SET name = $1, sheet_identifier = $2, assignment_type = $3, entity_ids = $4,
		    user_ids = $5, tab_prefix = $6, tab_per_month = $7, health_status = $8, updated_at = NOW()
		WHERE id = $9
	`

	result, err := r.db.Pool().Exec(ctx, query,
		cfg.Name,
		cfg.SheetIdentifier,
		cfg.AssignmentType,
		cfg.EntityIDs,
		uuidStrings(cfg.UserIDs),
		cfg.TabPrefix,
		cfg.TabPerMonth,
		cfg.HealthStatus,
		cfg.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update sheet config", "id", cfg.ID.String(), "error", err)
		return fmt.Errorf("failed to update sheet config: %w", err)
	}

	if result.RowsAffected() == 0 {
		return routing.ErrConfigNotFound{ConfigID: cfg.ID}
	}

	return nil
}

// GetByID retrieves a sheet configuration by its ID
func (r *SheetConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*routing.SheetConfig, error) {
	query := `SELECT ` + sheetConfigColumns + ` FROM sheet_configs WHERE id = $1`

	cfg, err := r.scanOne(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, routing.ErrConfigNotFound{ConfigID: id}
		}
		r.logger.Error("Failed to get sheet config", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get sheet config: %w", err)
	}

	return cfg, nil
}

// List retrieves all sheet configurations, most recently updated first
func (r *SheetConfigRepository) List(ctx context.Context) ([]*routing.SheetConfig, error) {
	query := `SELECT ` + sheetConfigColumns + ` FROM sheet_configs ORDER BY updated_at DESC`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list sheet configs", "error", err)
		return nil, fmt.Errorf("failed to list sheet configs: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// GetActiveForUser returns the active config directly assigned to the user,
// or nil if no such config exists.
func (r *SheetConfigRepository) GetActiveForUser(ctx context.Context, userID uuid.UUID) (*routing.SheetConfig, error) {
	query := `SELECT ` + sheetConfigColumns + `
		FROM sheet_configs
		WHERE status = 'active' AND $1 = ANY(user_ids)
		ORDER BY updated_at DESC
		LIMIT 1`

	cfg, err := r.scanOne(r.db.Pool().QueryRow(ctx, query, userID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get sheet config for user", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get sheet config for user: %w", err)
	}

	return cfg, nil
}

// GetActiveForEntity returns the active config assigned to the entity, or nil
func (r *SheetConfigRepository) GetActiveForEntity(ctx context.Context, entityID string) (*routing.SheetConfig, error) {
	query := `SELECT ` + sheetConfigColumns + `
		FROM sheet_configs
		WHERE status = 'active' AND $1 = ANY(entity_ids)
		ORDER BY updated_at DESC
		LIMIT 1`

	cfg, err := r.scanOne(r.db.Pool().QueryRow(ctx, query, entityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get sheet config for entity", "entity_id", entityID, "error", err)
		return nil, fmt.Errorf("failed to get sheet config for entity: %w", err)
	}

	return cfg, nil
}

// GetActiveDefaults returns all active default configs, most recently updated
// first. By convention at most one exists; the resolver handles the rest.
func (r *SheetConfigRepository) GetActiveDefaults(ctx context.Context) ([]*routing.SheetConfig, error) {
	query := `SELECT ` + sheetConfigColumns + `
		FROM sheet_configs
		WHERE status = 'active' AND is_default
		ORDER BY updated_at DESC`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to get default sheet configs", "error", err)
		return nil, fmt.Errorf("failed to get default sheet configs: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// SetDefault marks one config as the default and clears every other default
// flag inside a single transaction, so no two defaults coexist.
func (r *SheetConfigRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	return r.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE sheet_configs SET is_default = FALSE, updated_at = NOW() WHERE is_default AND id <> $1`, id); err != nil {
			return fmt.Errorf("failed to clear default flags: %w", err)
		}

		result, err := tx.Exec(ctx, `UPDATE sheet_configs SET is_default = TRUE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to set default flag: %w", err)
		}
		if result.RowsAffected() == 0 {
			return routing.ErrConfigNotFound{ConfigID: id}
		}
		return nil
	})
}

// SetStatus flips a config's status. Deactivation is a status flip, never a
// hard delete, so historical records keep a resolvable reference.
func (r *SheetConfigRepository) SetStatus(ctx context.Context, id uuid.UUID, status routing.ConfigStatus) error {
	result, err := r.db.Pool().Exec(ctx, `UPDATE sheet_configs SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		r.logger.Error("Failed to set sheet config status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set sheet config status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return routing.ErrConfigNotFound{ConfigID: id}
	}
	return nil
}

// RecordWrite bumps the usage counters after a successful sink append
func (r *SheetConfigRepository) RecordWrite(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE sheet_configs
		SET rows_written = rows_written + 1, last_write_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Pool().Exec(ctx, query, id); err != nil {
		r.logger.Error("Failed to record sheet write", "id", id.String(), "error", err)
		return fmt.Errorf("failed to record sheet write: %w", err)
	}
	return nil
}

// AssignToUser adds a user to the config's assignment list
func (r *SheetConfigRepository) AssignToUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	query := `
		UPDATE sheet_configs
		SET user_ids = array_append(array_remove(user_ids, $1), $1),
		    assignment_type = 'user', updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.db.Pool().Exec(ctx, query, userID.String(), id)
	if err != nil {
		r.logger.Error("Failed to assign sheet config to user", "id", id.String(), "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to assign sheet config to user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return routing.ErrConfigNotFound{ConfigID: id}
	}
	return nil
}

// AssignToEntity adds an entity to the config's assignment list
func (r *SheetConfigRepository) AssignToEntity(ctx context.Context, id uuid.UUID, entityID string) error {
	query := `
		UPDATE sheet_configs
		SET entity_ids = array_append(array_remove(entity_ids, $1), $1),
		    assignment_type = 'entity', updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.db.Pool().Exec(ctx, query, entityID, id)
	if err != nil {
		r.logger.Error("Failed to assign sheet config to entity", "id", id.String(), "entity_id", entityID, "error", err)
		return fmt.Errorf("failed to assign sheet config to entity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return routing.ErrConfigNotFound{ConfigID: id}
	}
	return nil
}

// GetProfile retrieves the user's entity link, or nil when the user has none
func (r *SheetConfigRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*routing.UserProfile, error) {
	query := `SELECT user_id, entity_id FROM user_profiles WHERE user_id = $1`

	var profile routing.UserProfile
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&profile.UserID, &profile.EntityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get user profile", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	return &profile, nil
}

// UpsertProfile stores or replaces the user's entity link
func (r *SheetConfigRepository) UpsertProfile(ctx context.Context, profile *routing.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, entity_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET entity_id = EXCLUDED.entity_id
	`
	if _, err := r.db.Pool().Exec(ctx, query, profile.UserID, profile.EntityID); err != nil {
		r.logger.Error("Failed to upsert user profile", "user_id", profile.UserID.String(), "error", err)
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

func (r *SheetConfigRepository) scanOne(row pgx.Row) (*routing.SheetConfig, error) {
	var cfg routing.SheetConfig
	var userIDs []string
	err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.SheetIdentifier,
		&cfg.IsDefault,
		&cfg.Status,
		&cfg.AssignmentType,
		&cfg.EntityIDs,
		&userIDs,
		&cfg.TabPrefix,
		&cfg.TabPerMonth,
		&cfg.HealthStatus,
		&cfg.RowsWritten,
		&cfg.LastWriteAt,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.UserIDs = parseUUIDs(userIDs)
	return &cfg, nil
}

func (r *SheetConfigRepository) scanAll(rows pgx.Rows) ([]*routing.SheetConfig, error) {
	var configs []*routing.SheetConfig
	for rows.Next() {
		cfg, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sheet config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sheet configs: %w", err)
	}
	return configs, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
