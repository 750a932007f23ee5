package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"visit-tracker/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditFilter selects entries by action name or by the entity they touched, e.g. one request's history.
type AuditFilter struct {
	Action   string
	EntityID string
	Page     int
	Limit    int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	loc  *time.Location
}

// NewAuditService creates a new AuditService instance. Timestamps are rendered in loc.
func NewAuditService(repo repository.AuditRepository, loc *time.Location) AuditService {
	if loc == nil {
		loc = time.UTC
	}
	return &auditService{repo: repo, loc: loc}
}

// GetAuditLogs returns one page of the audit trail, newest first, with the acting user joined in.
func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		Action:   strings.ToUpper(strings.TrimSpace(filter.Action)),
		EntityID: strings.TrimSpace(filter.EntityID),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userName := "System"
		userID, userEmail := "", ""
		if l.User != nil {
			userName = l.User.Name
			userEmail = l.User.Email
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			UserName:   userName,
			UserEmail:  userEmail,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.In(s.loc).Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
