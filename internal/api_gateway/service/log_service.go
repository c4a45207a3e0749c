package service

import (
	"context"
	"log/slog"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
)

// LogServiceImpl implements the LogService interface
type LogServiceImpl struct {
	repo   auditlog.Repository
	logger *slog.Logger
}

// NewLogService creates a new audit log query service
func NewLogService(logger *slog.Logger, repo auditlog.Repository) LogService {
	return &LogServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

// QueryLogs returns audit entries matching the filter, newest first
func (s *LogServiceImpl) QueryLogs(ctx context.Context, filter auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	entries, err := s.repo.Query(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to query audit log", "error", err)
		return nil, err
	}
	return entries, nil
}
