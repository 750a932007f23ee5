package service

import (
	"context"
	"fmt"

	"visit-tracker/internal/lifecycle"
	"visit-tracker/internal/repository"

	"github.com/shopspring/decimal"
)

type QuotaUsage struct {
	QuotaBalance
	UsagePercent int `json:"usage_percent"`
}

type DashboardResponse struct {
	StateCounts     map[string]int64 `json:"state_counts"`
	TotalRequests   int64            `json:"total_requests"`
	TotalHours      int              `json:"total_hours"`
	UsedHours       int              `json:"used_hours"`
	AvailableHours  int              `json:"available_hours"`
	UsagePercent    int              `json:"usage_percent"`
	Quotas          []QuotaUsage     `json:"quotas"`
	UpcomingVisits  []VisitResponse  `json:"upcoming_visits"`
	AwaitingConfirm int64            `json:"awaiting_confirmation"`
}

type DashboardService interface {
	GetDashboard(ctx context.Context) (DashboardResponse, error)
}

type dashboardService struct {
	visits repository.VisitRepository
	quotas QuotaService
}

func NewDashboardService(visits repository.VisitRepository, quotas QuotaService) DashboardService {
	return &dashboardService{visits: visits, quotas: quotas}
}

// GetDashboard summarises request states and quota consumption across all customers.
func (s *dashboardService) GetDashboard(ctx context.Context) (DashboardResponse, error) {
	resp := DashboardResponse{StateCounts: make(map[string]int64)}

	counts, err := s.visits.CountByState(ctx)
	if err != nil {
		return resp, fmt.Errorf("failed to count requests: %w", err)
	}
	for _, st := range lifecycle.States() {
		resp.StateCounts[string(st)] = 0
	}
	for _, c := range counts {
		resp.StateCounts[string(c.State)] = c.Total
		resp.TotalRequests += c.Total
	}
	resp.AwaitingConfirm = resp.StateCounts[string(lifecycle.StateVisitCompleted)]

	balances, err := s.quotas.List(ctx)
	if err != nil {
		return resp, err
	}
	resp.Quotas = make([]QuotaUsage, 0, len(balances))
	for _, b := range balances {
		resp.TotalHours += b.TotalHours
		resp.UsedHours += b.UsedHours
		resp.Quotas = append(resp.Quotas, QuotaUsage{QuotaBalance: b, UsagePercent: percent(b.UsedHours, b.TotalHours)})
	}
	resp.AvailableHours = resp.TotalHours - resp.UsedHours
	resp.UsagePercent = percent(resp.UsedHours, resp.TotalHours)

	upcoming, _, err := s.visits.List(ctx, repository.VisitFilter{
		States: []lifecycle.State{lifecycle.StateScheduled},
		Page:   1,
		Limit:  10,
	})
	if err != nil {
		return resp, fmt.Errorf("failed to list scheduled visits: %w", err)
	}
	resp.UpcomingVisits = make([]VisitResponse, 0, len(upcoming))
	for _, v := range upcoming {
		resp.UpcomingVisits = append(resp.UpcomingVisits, toVisitResponse(v))
	}

	return resp, nil
}

// percent rounds used/total to a whole percentage, half away from zero.
func percent(used, total int) int {
	if total <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(used)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).
		IntPart())
}
