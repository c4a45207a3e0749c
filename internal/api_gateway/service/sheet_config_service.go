package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/domain/routing"
)

// SheetConfigServiceImpl implements the SheetConfigService interface
type SheetConfigServiceImpl struct {
	repo    routing.Repository
	auditor *auditlog.Recorder
	logger  *slog.Logger
}

// NewSheetConfigService creates a new sheet config service
func NewSheetConfigService(logger *slog.Logger, repo routing.Repository, auditor *auditlog.Recorder) SheetConfigService {
	return &SheetConfigServiceImpl{
		repo:    repo,
		auditor: auditor,
		logger:  logger,
	}
}

// CreateConfig registers a new destination ledger configuration
func (s *SheetConfigServiceImpl) CreateConfig(ctx context.Context, cfg *routing.SheetConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Status == "" {
		cfg.Status = routing.ConfigActive
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := s.repo.Create(ctx, cfg); err != nil {
		s.logger.Error("Failed to create sheet config", "name", cfg.Name, "error", err)
		return err
	}

	s.auditor.Log(ctx, auditlog.SeverityInfo, "sheet_config_create", "sheet config created",
		auditlog.WithContext("config_id", cfg.ID.String()),
		auditlog.WithContext("name", cfg.Name),
		auditlog.WithContext("sheet_identifier", cfg.SheetIdentifier),
	)
	return nil
}

// UpdateConfig replaces a configuration's mutable fields
func (s *SheetConfigServiceImpl) UpdateConfig(ctx context.Context, cfg *routing.SheetConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, cfg); err != nil {
		s.logger.Error("Failed to update sheet config", "config_id", cfg.ID.String(), "error", err)
		return err
	}

	s.auditor.Log(ctx, auditlog.SeverityInfo, "sheet_config_update", "sheet config updated",
		auditlog.WithContext("config_id", cfg.ID.String()),
	)
	return nil
}

// GetConfig retrieves a configuration by ID
func (s *SheetConfigServiceImpl) GetConfig(ctx context.Context, id uuid.UUID) (*routing.SheetConfig, error) {
	return s.repo.GetByID(ctx, id)
}

// ListConfigs lists all configurations including inactive ones
func (s *SheetConfigServiceImpl) ListConfigs(ctx context.Context) ([]*routing.SheetConfig, error) {
	return s.repo.List(ctx)
}

// SetDefault promotes one config to system default, demoting all others
func (s *SheetConfigServiceImpl) SetDefault(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetDefault(ctx, id); err != nil {
		s.logger.Error("Failed to set default sheet config", "config_id", id.String(), "error", err)
		return err
	}

	s.auditor.Log(ctx, auditlog.SeverityInfo, "sheet_config_set_default", "sheet config promoted to default",
		auditlog.WithContext("config_id", id.String()),
	)
	return nil
}

// SetStatus flips a config's operational status
func (s *SheetConfigServiceImpl) SetStatus(ctx context.Context, id uuid.UUID, status routing.ConfigStatus) error {
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		s.logger.Error("Failed to set sheet config status", "config_id", id.String(), "status", string(status), "error", err)
		return err
	}

	s.auditor.Log(ctx, auditlog.SeverityInfo, "sheet_config_set_status", "sheet config status changed",
		auditlog.WithContext("config_id", id.String()),
		auditlog.WithContext("status", string(status)),
	)
	return nil
}

// AssignToUser adds a direct user assignment to a config
func (s *SheetConfigServiceImpl) AssignToUser(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.AssignToUser(ctx, id, userID); err != nil {
		s.logger.Error("Failed to assign sheet config to user", "config_id", id.String(), "user_id", userID.String(), "error", err)
		return err
	}

	s.auditor.Log(ctx, auditlog.SeverityInfo, "sheet_config_assign", "sheet config assigned to user",
		auditlog.WithUser(userID),
		auditlog.WithContext("config_id", id.String()),
	)
	return nil
}

// AssignToEntity adds an entity assignment to a config
func (s *SheetConfigServiceImpl) AssignToEntity(ctx context.Context, id uuid.UUID, entityID string) error {
	if err := s.repo.AssignToEntity(ctx, id, entityID); err != nil {
		s.logger.Error("Failed to assign sheet config to entity", "config_id", id.String(), "entity_id", entityID, "error", err)
		return err
	}

	s.auditor.Log(ctx, auditlog.SeverityInfo, "sheet_config_assign", "sheet config assigned to entity",
		auditlog.WithContext("config_id", id.String()),
		auditlog.WithContext("entity_id", entityID),
	)
	return nil
}
