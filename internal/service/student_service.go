package service

import (
	"context"
	"strings"

	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
)

// StudentService handles student registry business logic.
type StudentService struct {
	studentRepo *repository.StudentRepository
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository) *StudentService {
	return &StudentService{studentRepo: studentRepo}
}

// NormalizeStudent trims every field of the request.
func NormalizeStudent(req model.StudentRequest) model.Student {
	return model.Student{
		LRN:       strings.TrimSpace(req.LRN),
		Name:      strings.TrimSpace(req.Name),
		YearLevel: strings.TrimSpace(req.YearLevel),
		Section:   strings.TrimSpace(req.Section),
	}
}

// List returns all students ordered by name.
func (s *StudentService) List(ctx context.Context) ([]model.Student, error) {
	students, err := s.studentRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, id)
}

// GetByLRN retrieves a student by LRN.
func (s *StudentService) GetByLRN(ctx context.Context, lrn string) (*model.Student, error) {
	return s.studentRepo.GetByLRN(ctx, strings.TrimSpace(lrn))
}

// Create registers a student.
func (s *StudentService) Create(ctx context.Context, req model.StudentRequest) (*model.Student, error) {
	student := NormalizeStudent(req)
	if err := s.studentRepo.Create(ctx, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// Update replaces a student's details.
func (s *StudentService) Update(ctx context.Context, id int, req model.StudentRequest) (*model.Student, error) {
	student := NormalizeStudent(req)
	student.ID = id
	return s.studentRepo.Update(ctx, &student)
}

// Delete removes a student and, by cascade, their attendance history.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	return s.studentRepo.Delete(ctx, id)
}
