package routing

import (
	"time"

	"github.com/google/uuid"
)

// ConfigStatus is the operational state of a sheet configuration
type ConfigStatus string

const (
	ConfigActive   ConfigStatus = "active"
	ConfigInactive ConfigStatus = "inactive"
	ConfigError    ConfigStatus = "error"
)

// AssignmentType scopes who a configuration applies to
type AssignmentType string

const (
	AssignEntity AssignmentType = "entity"
	AssignUser   AssignmentType = "user"
	AssignAll    AssignmentType = "all"
)

// SheetConfig is a routing destination: a spreadsheet a user's finalized
// receipts are appended to. Configs are soft-deleted (status flip) so that
// historical records keep a resolvable reference.
type SheetConfig struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	SheetIdentifier string         `json:"sheet_identifier"`
	IsDefault       bool           `json:"is_default"`
	Status          ConfigStatus   `json:"status"`
	AssignmentType  AssignmentType `json:"assignment_type"`
	EntityIDs       []string       `json:"entity_ids,omitempty"`
	UserIDs         []uuid.UUID    `json:"user_ids,omitempty"`
	TabPrefix       string         `json:"tab_prefix"`   // Tab name template, e.g. "Receipts"
	TabPerMonth     bool           `json:"tab_per_month"` // Append "2026-01" style suffixes
	HealthStatus    string         `json:"health_status,omitempty"`
	RowsWritten     int64          `json:"rows_written"`
	LastWriteAt     *time.Time     `json:"last_write_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TabName derives the destination tab for a write at the given time
func (c *SheetConfig) TabName(at time.Time) string {
	prefix := c.TabPrefix
	if prefix == "" {
		prefix = "Receipts"
	}
	if c.TabPerMonth {
		return prefix + " " + at.Format("2006-01")
	}
	return prefix
}

// UserProfile links a user to an organizational entity for routing purposes
type UserProfile struct {
	UserID   uuid.UUID `json:"user_id"`
	EntityID string    `json:"entity_id,omitempty"`
}

// Destination is the resolved target for a ledger write
type Destination struct {
	ConfigID        *uuid.UUID `json:"config_id,omitempty"` // nil for the legacy fallback
	SheetIdentifier string     `json:"sheet_identifier"`
	Tab             string     `json:"tab"`
}
