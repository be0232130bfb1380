package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/libris-backend/internal/model"
)

const attendanceColumns = `id, student_id, check_in, check_out`

// AttendanceRepository handles attendance data access.
type AttendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func scanAttendance(row pgx.Row) (*model.Attendance, error) {
	a := &model.Attendance{}
	if err := row.Scan(&a.ID, &a.StudentID, &a.CheckIn, &a.CheckOut); err != nil {
		return nil, err
	}
	return a, nil
}

// ListWithStudentBetween returns visits whose check-in falls in [from, to),
// joined with the visitor's name. A zero to means no upper bound.
func (r *AttendanceRepository) ListWithStudentBetween(ctx context.Context, from, to time.Time) ([]model.AttendanceWithStudent, error) {
	query := `SELECT a.id, a.student_id, a.check_in, a.check_out, COALESCE(s.name, '')
		 FROM attendance a LEFT JOIN students s ON s.id = a.student_id
		 WHERE a.check_in >= $1`
	args := []interface{}{from}
	if !to.IsZero() {
		query += ` AND a.check_in < $2`
		args = append(args, to)
	}
	query += ` ORDER BY a.check_in DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := []model.AttendanceWithStudent{}
	for rows.Next() {
		var v model.AttendanceWithStudent
		if err := rows.Scan(&v.ID, &v.StudentID, &v.CheckIn, &v.CheckOut, &v.StudentName); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// CountBetween returns the number of visits checked in during [from, to).
func (r *AttendanceRepository) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance WHERE check_in >= $1 AND check_in < $2`,
		from, to).Scan(&n)
	return n, err
}

// CountOpenBetween returns the number of still-open visits checked in during [from, to).
func (r *AttendanceRepository) CountOpenBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance
		 WHERE check_in >= $1 AND check_in < $2 AND check_out IS NULL`,
		from, to).Scan(&n)
	return n, err
}

// ListCompletedBetween returns closed visits checked in during [from, to).
func (r *AttendanceRepository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]model.Attendance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attendanceColumns+` FROM attendance
		 WHERE check_in >= $1 AND check_in < $2 AND check_out IS NOT NULL`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := []model.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, *a)
	}
	return visits, rows.Err()
}

// LatestOpen returns the most recent open visit for a student, or nil.
func (r *AttendanceRepository) LatestOpen(ctx context.Context, studentID int) (*model.Attendance, error) {
	a, err := scanAttendance(r.pool.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance
		 WHERE student_id = $1 AND check_out IS NULL
		 ORDER BY check_in DESC LIMIT 1`, studentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// CheckIn opens a new visit.
func (r *AttendanceRepository) CheckIn(ctx context.Context, studentID int, at time.Time) (*model.Attendance, error) {
	return scanAttendance(r.pool.QueryRow(ctx,
		`INSERT INTO attendance (student_id, check_in, check_out)
		 VALUES ($1, $2, NULL)
		 RETURNING `+attendanceColumns, studentID, at))
}

// Close sets the check-out time of a visit.
func (r *AttendanceRepository) Close(ctx context.Context, id int, at time.Time) (*model.Attendance, error) {
	return scanAttendance(r.pool.QueryRow(ctx,
		`UPDATE attendance SET check_out = $1 WHERE id = $2 RETURNING `+attendanceColumns, at, id))
}

// Renew closes every open visit of a student and opens a fresh one in one
// transaction. It returns the closed visits and the new one.
func (r *AttendanceRepository) Renew(ctx context.Context, studentID int, at time.Time) ([]model.Attendance, *model.Attendance, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE attendance SET check_out = $1
		 WHERE student_id = $2 AND check_out IS NULL
		 RETURNING `+attendanceColumns,
		at, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("close open visits: %w", err)
	}
	var closed []model.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("close open visits: %w", err)
		}
		closed = append(closed, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("close open visits: %w", err)
	}

	a, err := scanAttendance(tx.QueryRow(ctx,
		`INSERT INTO attendance (student_id, check_in, check_out)
		 VALUES ($1, $2, NULL)
		 RETURNING `+attendanceColumns, studentID, at))
	if err != nil {
		return nil, nil, fmt.Errorf("check in: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return closed, a, nil
}
