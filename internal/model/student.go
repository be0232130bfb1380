package model

import "time"

// Student is a library patron identified by their learner reference number.
type Student struct {
	ID        int       `json:"id"`
	LRN       string    `json:"lrn"`
	Name      string    `json:"name"`
	YearLevel string    `json:"year_level"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentRequest is the payload for creating or updating a student.
type StudentRequest struct {
	LRN       string `json:"lrn" binding:"required,max=32,lrn"`
	Name      string `json:"name" binding:"required,max=255"`
	YearLevel string `json:"year_level" binding:"max=32"`
	Section   string `json:"section" binding:"max=64"`
}
