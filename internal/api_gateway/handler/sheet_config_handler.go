package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/receiptflow-ledger/internal/api_gateway/service"
	"github.com/receiptflow-ledger/internal/domain/routing"
)

// SheetConfigHandler handles HTTP requests for destination ledger configuration
type SheetConfigHandler struct {
	configService service.SheetConfigService
	logger        *slog.Logger
}

// NewSheetConfigHandler creates a new sheet config handler
func NewSheetConfigHandler(logger *slog.Logger, configService service.SheetConfigService) *SheetConfigHandler {
	return &SheetConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// Create registers a new destination configuration
func (h *SheetConfigHandler) Create(c *gin.Context) {
	var req SheetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cfg, err := configFromRequest(&req)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.configService.CreateConfig(c.Request.Context(), cfg); err != nil {
		h.logger.Error("Failed to create sheet config", "name", req.Name, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, cfg)
}

// Update replaces a configuration's mutable fields
func (h *SheetConfigHandler) Update(c *gin.Context) {
	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	var req SheetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cfg, err := configFromRequest(&req)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	cfg.ID = configID

	if err := h.configService.UpdateConfig(c.Request.Context(), cfg); err != nil {
		h.respondConfigError(c, configID, err)
		return
	}

	RespondOK(c, cfg)
}

// GetByID retrieves a configuration
func (h *SheetConfigHandler) GetByID(c *gin.Context) {
	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	cfg, err := h.configService.GetConfig(c.Request.Context(), configID)
	if err != nil {
		h.respondConfigError(c, configID, err)
		return
	}

	RespondOK(c, cfg)
}

// List returns all configurations including inactive ones
func (h *SheetConfigHandler) List(c *gin.Context) {
	configs, err := h.configService.ListConfigs(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list sheet configs", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"configs": configs})
}

// SetDefault promotes a configuration to system default
func (h *SheetConfigHandler) SetDefault(c *gin.Context) {
	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	if err := h.configService.SetDefault(c.Request.Context(), configID); err != nil {
		h.respondConfigError(c, configID, err)
		return
	}

	RespondOK(c, gin.H{"config_id": configID.String(), "is_default": true})
}

// SetStatus activates or deactivates a configuration
func (h *SheetConfigHandler) SetStatus(c *gin.Context) {
	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	var req SetConfigStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.configService.SetStatus(c.Request.Context(), configID, routing.ConfigStatus(req.Status)); err != nil {
		h.respondConfigError(c, configID, err)
		return
	}

	RespondOK(c, gin.H{"config_id": configID.String(), "status": req.Status})
}

// Assign attaches a configuration to a user or an entity
func (h *SheetConfigHandler) Assign(c *gin.Context) {
	configID, ok := h.parseConfigID(c)
	if !ok {
		return
	}

	var req AssignConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	switch {
	case req.UserID != "":
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			RespondBadRequest(c, "Invalid user ID")
			return
		}
		if err := h.configService.AssignToUser(c.Request.Context(), configID, userID); err != nil {
			h.respondConfigError(c, configID, err)
			return
		}
	case req.EntityID != "":
		if err := h.configService.AssignToEntity(c.Request.Context(), configID, req.EntityID); err != nil {
			h.respondConfigError(c, configID, err)
			return
		}
	default:
		RespondBadRequest(c, "Either user_id or entity_id is required")
		return
	}

	RespondOK(c, gin.H{"config_id": configID.String()})
}

func (h *SheetConfigHandler) parseConfigID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid config ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid config ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SheetConfigHandler) respondConfigError(c *gin.Context, configID uuid.UUID, err error) {
	if errors.Is(err, routing.ErrConfigNotFound{}) {
		RespondNotFound(c, "Sheet config not found")
		return
	}
	h.logger.Error("Sheet config operation failed", "config_id", configID.String(), "error", err)
	RespondInternalError(c)
}

// configFromRequest maps the request DTO onto a domain config
func configFromRequest(req *SheetConfigRequest) (*routing.SheetConfig, error) {
	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("invalid user ID in user_ids: " + raw)
		}
		userIDs = append(userIDs, id)
	}

	assignment := routing.AssignmentType(req.AssignmentType)
	if assignment == "" {
		assignment = routing.AssignAll
	}

	return &routing.SheetConfig{
		Name:            req.Name,
		SheetIdentifier: req.SheetIdentifier,
		IsDefault:       req.IsDefault,
		AssignmentType:  assignment,
		EntityIDs:       req.EntityIDs,
		UserIDs:         userIDs,
		TabPrefix:       req.TabPrefix,
		TabPerMonth:     req.TabPerMonth,
	}, nil
}
