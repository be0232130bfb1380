package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
)

// BookService handles catalog business logic.
type BookService struct {
	repo *repository.BookRepository
}

// NewBookService creates a new BookService.
func NewBookService(repo *repository.BookRepository) *BookService {
	return &BookService{repo: repo}
}

// BookQueryKind is how a search string is interpreted.
type BookQueryKind int

const (
	BookQueryAll BookQueryKind = iota
	BookQueryShelf
	BookQueryText
)

// ClassifyBookQuery decides how a search string is run: empty lists the
// whole catalog, all ASCII digits is an exact shelf number, anything else is a
// substring match on title or author.
func ClassifyBookQuery(q string) (BookQueryKind, string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return BookQueryAll, ""
	}
	for _, r := range q {
		if r < '0' || r > '9' {
			return BookQueryText, q
		}
	}
	return BookQueryShelf, q
}

// NormalizeBook trims the request and applies the default shelf.
func NormalizeBook(req model.CreateBookRequest) model.Book {
	shelf := req.Shelf
	if shelf < 1 {
		shelf = 1
	}
	return model.Book{
		Title:     strings.TrimSpace(req.Title),
		Author:    strings.TrimSpace(req.Author),
		Shelf:     shelf,
		Available: req.Available,
	}
}

// List returns the whole catalog ordered by shelf then title.
func (s *BookService) List(ctx context.Context) ([]model.Book, error) {
	return nonNilBooks(s.repo.List(ctx))
}

// Search runs a catalog query.
func (s *BookService) Search(ctx context.Context, q string) ([]model.Book, error) {
	kind, term := ClassifyBookQuery(q)
	switch kind {
	case BookQueryShelf:
		shelf, err := strconv.Atoi(term)
		if err != nil {
			// Too many digits for an int; no shelf can match.
			return []model.Book{}, nil
		}
		return nonNilBooks(s.repo.ListByShelf(ctx, shelf))
	case BookQueryText:
		return nonNilBooks(s.repo.SearchText(ctx, term))
	default:
		return s.List(ctx)
	}
}

// Create adds a book to the catalog.
func (s *BookService) Create(ctx context.Context, req model.CreateBookRequest) (*model.Book, error) {
	book := NormalizeBook(req)
	if err := s.repo.Create(ctx, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// Delete removes a book.
func (s *BookService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// ToggleAvailability flips a book's availability flag.
func (s *BookService) ToggleAvailability(ctx context.Context, id int) (*model.Book, error) {
	return s.repo.ToggleAvailability(ctx, id)
}

func nonNilBooks(books []model.Book, err error) ([]model.Book, error) {
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []model.Book{}
	}
	return books, nil
}
