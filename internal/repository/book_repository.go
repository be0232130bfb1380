package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/libris-backend/internal/model"
)

var ErrBookNotFound = errors.New("book not found")

const bookColumns = `id, title, author, shelf, available, created_at`

// BookRepository handles book catalog data access.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository creates a new BookRepository.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

func scanBook(row pgx.Row) (*model.Book, error) {
	b := &model.Book{}
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Shelf, &b.Available, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *BookRepository) queryBooks(ctx context.Context, query string, args ...interface{}) ([]model.Book, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// List returns every book ordered by shelf, then title.
func (r *BookRepository) List(ctx context.Context) ([]model.Book, error) {
	return r.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY shelf ASC, title ASC`)
}

// ListByShelf returns the books on one shelf ordered by title.
func (r *BookRepository) ListByShelf(ctx context.Context, shelf int) ([]model.Book, error) {
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE shelf = $1 ORDER BY title ASC`, shelf)
}

// SearchText matches a case-insensitive substring of title or author.
func (r *BookRepository) SearchText(ctx context.Context, term string) ([]model.Book, error) {
	pattern := "%" + escapeLike(term) + "%"
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE title ILIKE $1 OR author ILIKE $1
		 ORDER BY shelf ASC, title ASC`, pattern)
}

// Create inserts a new book.
func (r *BookRepository) Create(ctx context.Context, b *model.Book) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO books (title, author, shelf, available)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		b.Title, b.Author, b.Shelf, b.Available,
	).Scan(&b.ID, &b.CreatedAt)
}

// Delete removes a book by ID.
func (r *BookRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// ToggleAvailability flips the available flag in a single statement.
func (r *BookRepository) ToggleAvailability(ctx context.Context, id int) (*model.Book, error) {
	return scanBook(r.pool.QueryRow(ctx,
		`UPDATE books SET available = NOT available WHERE id = $1 RETURNING `+bookColumns, id))
}

// CountCatalog returns the total and currently available book counts.
func (r *BookRepository) CountCatalog(ctx context.Context) (total, available int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE available) FROM books`).Scan(&total, &available)
	return
}
