package service

import (
	"context"

	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Counts         *repository.DashboardCounts `json:"counts"`
	Shelves        []repository.ShelfCount     `json:"shelves"`
	Today          *model.AttendanceSummary    `json:"today"`
	RecentActivity []model.ActivityEvent       `json:"recent_activity"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo       *repository.DashboardRepository
	attendance *AttendanceService
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository, attendance *AttendanceService) *DashboardService {
	return &DashboardService{repo: repo, attendance: attendance}
}

// GetDashboardData fetches all dashboard metrics concurrently.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	data := &DashboardData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		data.Counts, err = s.repo.GetSummaryCounts(gctx)
		return
	})
	g.Go(func() (err error) {
		data.Shelves, err = s.repo.GetShelfCounts(gctx)
		return
	})
	g.Go(func() (err error) {
		data.Today, err = s.attendance.Summary(gctx)
		return
	})
	g.Go(func() (err error) {
		data.RecentActivity, err = s.attendance.RecentActivity(gctx, 5, s.attendance.nowFunc())
		return
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
