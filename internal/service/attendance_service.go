package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultActivityLimit is the number of events the activity feed returns
// when the caller does not ask for a specific count.
const DefaultActivityLimit = 20

// ActivityPublisher fans attendance events out to live subscribers.
type ActivityPublisher interface {
	Publish(ctx context.Context, event model.ActivityEvent) error
}

// VisitStore persists attendance visits.
type VisitStore interface {
	ListWithStudentBetween(ctx context.Context, from, to time.Time) ([]model.AttendanceWithStudent, error)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
	CountOpenBetween(ctx context.Context, from, to time.Time) (int, error)
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]model.Attendance, error)
	LatestOpen(ctx context.Context, studentID int) (*model.Attendance, error)
	CheckIn(ctx context.Context, studentID int, at time.Time) (*model.Attendance, error)
	Close(ctx context.Context, id int, at time.Time) (*model.Attendance, error)
	Renew(ctx context.Context, studentID int, at time.Time) ([]model.Attendance, *model.Attendance, error)
}

// StudentLookup resolves the visitors of attendance records.
type StudentLookup interface {
	GetByID(ctx context.Context, id int) (*model.Student, error)
	GetByLRN(ctx context.Context, lrn string) (*model.Student, error)
}

// AttendanceService handles visit tracking and reporting.
type AttendanceService struct {
	repo      VisitStore
	students  StudentLookup
	publisher ActivityPublisher
	log       zerolog.Logger
	nowFunc   func() time.Time
}

// NewAttendanceService creates a new AttendanceService. A nil publisher
// disables live events.
func NewAttendanceService(repo VisitStore, students StudentLookup, publisher ActivityPublisher, log zerolog.Logger) *AttendanceService {
	return &AttendanceService{
		repo:      repo,
		students:  students,
		publisher: publisher,
		log:       log.With().Str("component", "attendance_service").Logger(),
		nowFunc:   time.Now,
	}
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StaySeconds is the whole-second length of a completed visit, floored at zero.
func StaySeconds(checkIn, checkOut time.Time) int64 {
	secs := int64(checkOut.Sub(checkIn) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// FormatDuration renders seconds as "<m>m <ss>s". Negative input renders as zero.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}

// BuildActivityEvents expands visits into check-in and check-out events,
// newest first, truncated to limit.
func BuildActivityEvents(visits []model.AttendanceWithStudent, limit int) []model.ActivityEvent {
	events := make([]model.ActivityEvent, 0, len(visits)*2)
	for _, v := range visits {
		events = append(events, checkInEvent(v.Attendance, v.StudentName))
		if v.CheckOut != nil {
			events = append(events, checkOutEvent(v.Attendance, v.StudentName))
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.After(events[j].Time)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

func checkInEvent(a model.Attendance, name string) model.ActivityEvent {
	return model.ActivityEvent{
		ID:     strconv.Itoa(a.ID) + "-in",
		Type:   model.ActivityIn,
		User:   name,
		Action: "Checked in",
		Time:   a.CheckIn,
	}
}

func checkOutEvent(a model.Attendance, name string) model.ActivityEvent {
	secs := StaySeconds(a.CheckIn, *a.CheckOut)
	return model.ActivityEvent{
		ID:       strconv.Itoa(a.ID) + "-out",
		Type:     model.ActivityOut,
		User:     name,
		Action:   "Checked out",
		Time:     *a.CheckOut,
		Duration: &secs,
	}
}

// AverageStaySeconds averages the completed visits with a positive stay.
func AverageStaySeconds(visits []model.Attendance) float64 {
	var total float64
	var n int
	for _, v := range visits {
		if v.CheckOut == nil {
			continue
		}
		d := v.CheckOut.Sub(v.CheckIn).Seconds()
		if d <= 0 {
			continue
		}
		total += d
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// RecentActivity returns the newest events since the start of the day
// containing from. A zero from means today.
func (s *AttendanceService) RecentActivity(ctx context.Context, limit int, from time.Time) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if from.IsZero() {
		from = s.nowFunc()
	}

	visits, err := s.repo.ListWithStudentBetween(ctx, StartOfDay(from), time.Time{})
	if err != nil {
		return nil, err
	}
	return BuildActivityEvents(visits, limit), nil
}

// Summary aggregates today's visits. A failure computing the average stay
// is logged and reported as zero.
func (s *AttendanceService) Summary(ctx context.Context) (*model.AttendanceSummary, error) {
	from := StartOfDay(s.nowFunc())
	to := from.AddDate(0, 0, 1)

	var summary model.AttendanceSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountBetween(gctx, from, to)
		summary.TotalVisits = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountOpenBetween(gctx, from, to)
		summary.ActiveUsers = n
		return err
	})
	g.Go(func() error {
		completed, err := s.repo.ListCompletedBetween(gctx, from, to)
		if err != nil {
			s.log.Warn().Err(err).Msg("Average stay unavailable")
			return nil
		}
		summary.AvgStaySeconds = AverageStaySeconds(completed)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &summary, nil
}

// OpenFor returns the student's latest open visit, or nil.
func (s *AttendanceService) OpenFor(ctx context.Context, studentID int) (*model.Attendance, error) {
	return s.repo.LatestOpen(ctx, studentID)
}

// CheckIn opens a new visit for an existing student.
func (s *AttendanceService) CheckIn(ctx context.Context, studentID int) (*model.Attendance, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	visit, err := s.repo.CheckIn(ctx, studentID, s.nowFunc())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, checkInEvent(*visit, student.Name))
	return visit, nil
}

// CheckOut closes the student's latest open visit. It returns nil when the
// student has no open visit.
func (s *AttendanceService) CheckOut(ctx context.Context, studentID int) (*model.Attendance, error) {
	open, err := s.repo.LatestOpen(ctx, studentID)
	if err != nil || open == nil {
		return nil, err
	}
	visit, err := s.repo.Close(ctx, open.ID, s.nowFunc())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, checkOutEvent(*visit, s.studentName(ctx, studentID)))
	return visit, nil
}

// Renew closes any open visit of the student and opens a fresh one.
func (s *AttendanceService) Renew(ctx context.Context, studentID int) (*model.Attendance, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	closed, visit, err := s.repo.Renew(ctx, studentID, s.nowFunc())
	if err != nil {
		return nil, err
	}
	for _, c := range closed {
		s.publish(ctx, checkOutEvent(c, student.Name))
	}
	s.publish(ctx, checkInEvent(*visit, student.Name))
	return visit, nil
}

// Scan toggles a student's presence from the kiosk: an open visit is
// closed, otherwise a new one is opened.
func (s *AttendanceService) Scan(ctx context.Context, lrn string) (*model.ScanResult, error) {
	student, err := s.students.GetByLRN(ctx, lrn)
	if err != nil {
		return nil, err
	}

	open, err := s.repo.LatestOpen(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	if open != nil {
		visit, err := s.repo.Close(ctx, open.ID, now)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, checkOutEvent(*visit, student.Name))
		return &model.ScanResult{Action: model.ActivityOut, Student: student, Attendance: visit}, nil
	}

	visit, err := s.repo.CheckIn(ctx, student.ID, now)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, checkInEvent(*visit, student.Name))
	return &model.ScanResult{Action: model.ActivityIn, Student: student, Attendance: visit}, nil
}

// Between returns the visits that started in [from, to) for reporting.
func (s *AttendanceService) Between(ctx context.Context, from, to time.Time) ([]model.AttendanceWithStudent, error) {
	return s.repo.ListWithStudentBetween(ctx, from, to)
}

func (s *AttendanceService) studentName(ctx context.Context, id int) string {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrStudentNotFound) {
			s.log.Warn().Err(err).Int("student_id", id).Msg("Failed to resolve student name")
		}
		return ""
	}
	return student.Name
}

func (s *AttendanceService) publish(ctx context.Context, event model.ActivityEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to publish attendance event")
	}
}
