package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/libris-backend/internal/model"
)

var (
	ErrDuplicateLRN    = errors.New("student with this LRN already exists")
	ErrStudentNotFound = errors.New("student not found")
)

const studentColumns = `id, lrn, name, year_level, section, created_at`

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	if err := row.Scan(&s.ID, &s.LRN, &s.Name, &s.YearLevel, &s.Section, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return s, nil
}

func studentWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateLRN
	}
	return err
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

// GetByLRN retrieves a student by their unique LRN.
func (r *StudentRepository) GetByLRN(ctx context.Context, lrn string) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE lrn = $1`, lrn))
}

// List retrieves all students ordered by name.
func (r *StudentRepository) List(ctx context.Context) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

// Count returns the number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (lrn, name, year_level, section)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		s.LRN, s.Name, s.YearLevel, s.Section,
	).Scan(&s.ID, &s.CreatedAt)
	return studentWriteErr(err)
}

// Update modifies a student's details and returns the stored row.
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) (*model.Student, error) {
	updated, err := scanStudent(r.pool.QueryRow(ctx,
		`UPDATE students SET lrn = $1, name = $2, year_level = $3, section = $4
		 WHERE id = $5
		 RETURNING `+studentColumns,
		s.LRN, s.Name, s.YearLevel, s.Section, s.ID))
	if err != nil {
		return nil, studentWriteErr(err)
	}
	return updated, nil
}

// Delete removes a student by ID.
func (r *StudentRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}
