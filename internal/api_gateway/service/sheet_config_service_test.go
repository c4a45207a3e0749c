package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/receiptflow-ledger/internal/domain/auditlog"
	"github.com/receiptflow-ledger/internal/domain/routing"
)

type MockRoutingRepository struct {
	mock.Mock
}

func (m *MockRoutingRepository) Create(ctx context.Context, cfg *routing.SheetConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockRoutingRepository) Update(ctx context.Context, cfg *routing.SheetConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockRoutingRepository) GetByID(ctx context.Context, id uuid.UUID) (*routing.SheetConfig, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.SheetConfig), args.Error(1)
}

func (m *MockRoutingRepository) List(ctx context.Context) ([]*routing.SheetConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*routing.SheetConfig), args.Error(1)
}

func (m *MockRoutingRepository) GetActiveForUser(ctx context.Context, userID uuid.UUID) (*routing.SheetConfig, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.SheetConfig), args.Error(1)
}

func (m *MockRoutingRepository) GetActiveForEntity(ctx context.Context, entityID string) (*routing.SheetConfig, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.SheetConfig), args.Error(1)
}

func (m *MockRoutingRepository) GetActiveDefaults(ctx context.Context) ([]*routing.SheetConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*routing.SheetConfig), args.Error(1)
}

func (m *MockRoutingRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRoutingRepository) SetStatus(ctx context.Context, id uuid.UUID, status routing.ConfigStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockRoutingRepository) RecordWrite(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRoutingRepository) AssignToUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockRoutingRepository) AssignToEntity(ctx context.Context, id uuid.UUID, entityID string) error {
	return m.Called(ctx, id, entityID).Error(0)
}

func (m *MockRoutingRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*routing.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.UserProfile), args.Error(1)
}

func (m *MockRoutingRepository) UpsertProfile(ctx context.Context, profile *routing.UserProfile) error {
	return m.Called(ctx, profile).Error(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *auditlog.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockAuditRepository) Query(ctx context.Context, filter auditlog.QueryFilter) ([]*auditlog.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditlog.Entry), args.Error(1)
}

func newConfigService() (SheetConfigService, *MockRoutingRepository, *MockAuditRepository) {
	repo := new(MockRoutingRepository)
	audit := new(MockAuditRepository)
	logger := newTestLogger()
	svc := NewSheetConfigService(logger, repo, auditlog.NewRecorder(audit, logger))
	return svc, repo, audit
}

func TestSheetConfigService_CreateConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("fills defaults, timestamps and audits the creation", func(t *testing.T) {
		svc, repo, audit := newConfigService()
		cfg := &routing.SheetConfig{Name: "Finance UK", SheetIdentifier: "sheet-1"}

		repo.On("Create", ctx, cfg).Return(nil)
		audit.On("Append", ctx, mock.MatchedBy(func(e *auditlog.Entry) bool {
			return e.Operation == "sheet_config_create" && e.Severity == auditlog.SeverityInfo
		})).Return(nil)

		err := svc.CreateConfig(ctx, cfg)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, cfg.ID)
		assert.Equal(t, routing.ConfigActive, cfg.Status)
		assert.False(t, cfg.CreatedAt.IsZero())
		assert.Equal(t, cfg.CreatedAt, cfg.UpdatedAt)
		audit.AssertExpectations(t)
	})

	t.Run("repository failure is not audited", func(t *testing.T) {
		svc, repo, audit := newConfigService()
		cfg := &routing.SheetConfig{Name: "Broken", SheetIdentifier: "sheet-2"}

		repo.On("Create", ctx, cfg).Return(errors.New("unique violation"))

		err := svc.CreateConfig(ctx, cfg)

		assert.Error(t, err)
		audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestSheetConfigService_UpdateConfig(t *testing.T) {
	ctx := context.Background()
	svc, repo, audit := newConfigService()
	cfg := &routing.SheetConfig{ID: uuid.New(), Name: "Finance UK", SheetIdentifier: "sheet-1"}

	repo.On("Update", ctx, cfg).Return(nil)
	audit.On("Append", ctx, mock.MatchedBy(func(e *auditlog.Entry) bool {
		return e.Operation == "sheet_config_update"
	})).Return(nil)

	err := svc.UpdateConfig(ctx, cfg)

	require.NoError(t, err)
	assert.False(t, cfg.UpdatedAt.IsZero())
	audit.AssertExpectations(t)
}

func TestSheetConfigService_SetDefault(t *testing.T) {
	ctx := context.Background()
	configID := uuid.New()

	t.Run("success is audited", func(t *testing.T) {
		svc, repo, audit := newConfigService()

		repo.On("SetDefault", ctx, configID).Return(nil)
		audit.On("Append", ctx, mock.MatchedBy(func(e *auditlog.Entry) bool {
			return e.Operation == "sheet_config_set_default"
		})).Return(nil)

		assert.NoError(t, svc.SetDefault(ctx, configID))
		audit.AssertExpectations(t)
	})

	t.Run("not found propagates", func(t *testing.T) {
		svc, repo, _ := newConfigService()

		repo.On("SetDefault", ctx, configID).Return(routing.ErrConfigNotFound{ConfigID: configID})

		err := svc.SetDefault(ctx, configID)

		assert.ErrorIs(t, err, routing.ErrConfigNotFound{})
	})
}

func TestSheetConfigService_Assignments(t *testing.T) {
	ctx := context.Background()
	configID := uuid.New()
	userID := uuid.New()

	t.Run("user assignment is audited with the user attached", func(t *testing.T) {
		svc, repo, audit := newConfigService()

		repo.On("AssignToUser", ctx, configID, userID).Return(nil)
		audit.On("Append", ctx, mock.MatchedBy(func(e *auditlog.Entry) bool {
			return e.Operation == "sheet_config_assign" && e.UserID != nil && *e.UserID == userID
		})).Return(nil)

		assert.NoError(t, svc.AssignToUser(ctx, configID, userID))
		audit.AssertExpectations(t)
	})

	t.Run("entity assignment is audited with the entity in context", func(t *testing.T) {
		svc, repo, audit := newConfigService()

		repo.On("AssignToEntity", ctx, configID, "acme-uk").Return(nil)
		audit.On("Append", ctx, mock.MatchedBy(func(e *auditlog.Entry) bool {
			return e.Operation == "sheet_config_assign" && e.Context["entity_id"] == "acme-uk"
		})).Return(nil)

		assert.NoError(t, svc.AssignToEntity(ctx, configID, "acme-uk"))
		audit.AssertExpectations(t)
	})
}
