package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/internal/model"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Naive date-time layouts are read in the configured zone.
var dateTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// parseDateTime accepts RFC 3339 or a zone-less date-time interpreted in loc.
func parseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date-time %q", value)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// parseID treats a malformed id like an unknown one.
func parseID(id, what string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, errs.NotFound(what)
	}
	return parsed, nil
}

// notFoundOr converts gorm's not-found into the domain error and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func actorID(p auth.Principal) *uuid.UUID {
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil
	}
	return &id
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, actor auth.Principal, action, entityID, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := model.AuditLog{
		UserID:     actorID(actor),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}

func futureDateTime(field, value string, now time.Time, loc *time.Location) (time.Time, error) {
	t, err := parseDateTime(value, loc)
	if err != nil {
		return time.Time{}, validation.Field(field, "must be a date-time such as 2025-01-31T14:00")
	}
	if t.Before(now) {
		return time.Time{}, validation.Field(field, "must not be in the past")
	}
	return t, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
