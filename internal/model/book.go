package model

import "time"

// Book is a catalog entry.
type Book struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Shelf     int       `json:"shelf"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateBookRequest is the payload for adding a book.
type CreateBookRequest struct {
	Title     string `json:"title" binding:"required,max=255"`
	Author    string `json:"author" binding:"max=255"`
	Shelf     int    `json:"shelf" binding:"omitempty,min=0"`
	Available bool   `json:"available"`
}
