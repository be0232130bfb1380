package model

import "time"

// Attendance is one library visit. CheckOut is nil while the visit is open.
type Attendance struct {
	ID        int        `json:"id"`
	StudentID int        `json:"student_id"`
	CheckIn   time.Time  `json:"check_in"`
	CheckOut  *time.Time `json:"check_out"`
}

// AttendanceWithStudent joins a visit with the visitor's name.
type AttendanceWithStudent struct {
	Attendance
	StudentName string `json:"student_name"`
}

// ActivityType tags an activity event as a check-in or a check-out.
type ActivityType string

const (
	ActivityIn  ActivityType = "in"
	ActivityOut ActivityType = "out"
)

// ActivityEvent is one entry of the recent-activity feed.
type ActivityEvent struct {
	ID       string       `json:"id"`
	Type     ActivityType `json:"type"`
	User     string       `json:"user"`
	Action   string       `json:"action"`
	Time     time.Time    `json:"time"`
	Duration *int64       `json:"duration"`
}

// AttendanceSummary aggregates today's visits.
type AttendanceSummary struct {
	TotalVisits    int     `json:"total_visits"`
	ActiveUsers    int     `json:"active_users"`
	AvgStaySeconds float64 `json:"avg_stay_seconds"`
}

// StudentIDRequest identifies a student for check-in/out operations.
type StudentIDRequest struct {
	StudentID int `json:"student_id" binding:"required,min=1"`
}

// ScanRequest identifies a student by LRN at the kiosk.
type ScanRequest struct {
	LRN string `json:"lrn" binding:"required,max=32,lrn"`
}

// ScanResult reports what a kiosk scan did.
type ScanResult struct {
	Action     ActivityType `json:"action"`
	Student    *Student     `json:"student"`
	Attendance *Attendance  `json:"attendance"`
}
