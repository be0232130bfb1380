package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// DashboardCounts holds the high-level registry totals.
type DashboardCounts struct {
	TotalBooks        int `json:"total_books"`
	AvailableBooks    int `json:"available_books"`
	TotalStudents     int `json:"total_students"`
	TotalAccounts     int `json:"total_accounts"`
	AdminTierAccounts int `json:"admin_tier_accounts"`
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (*DashboardCounts, error) {
	c := &DashboardCounts{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM books WHERE available),
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE role IN ('super_admin', 'admin'))`,
	).Scan(&c.TotalBooks, &c.AvailableBooks, &c.TotalStudents, &c.TotalAccounts, &c.AdminTierAccounts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ShelfCount is the number of books on one shelf.
type ShelfCount struct {
	Shelf     int `json:"shelf"`
	Total     int `json:"total"`
	Available int `json:"available"`
}

// GetShelfCounts retrieves the distribution of books by shelf.
func (r *DashboardRepository) GetShelfCounts(ctx context.Context) ([]ShelfCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT shelf, COUNT(*), COUNT(*) FILTER (WHERE available)
		 FROM books GROUP BY shelf ORDER BY shelf`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shelves := []ShelfCount{}
	for rows.Next() {
		var s ShelfCount
		if err := rows.Scan(&s.Shelf, &s.Total, &s.Available); err != nil {
			return nil, err
		}
		shelves = append(shelves, s)
	}
	return shelves, rows.Err()
}
