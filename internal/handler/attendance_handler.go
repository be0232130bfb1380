package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/report"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stemsi/libris-backend/internal/service"
	"github.com/stemsi/libris-backend/internal/validator"
)

const (
	dateLayout   = "2006-01-02"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AttendanceHandler handles visit tracking, reporting, and the kiosk.
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(attendanceService *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

// parseDate reads an optional YYYY-MM-DD query parameter as local midnight.
func parseDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidDate, map[string]string{name: raw})
		return time.Time{}, false
	}
	return t, true
}

// ExportRange resolves the export window [from, to). Both bounds are
// inclusive dates; a missing from means the first day of the current
// month and a missing to means the last day of from's month.
func ExportRange(from, to, now time.Time) (time.Time, time.Time) {
	if from.IsZero() {
		y, m, _ := now.Date()
		from = time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	}
	if to.IsZero() {
		return from, time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, from.Location())
	}
	return from, to.AddDate(0, 0, 1)
}

// Recent godoc
// GET /api/v1/attendance/recent?limit=&from=
// Lists check-in and check-out events, newest first.
func (h *AttendanceHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultActivityLimit)))
	from, ok := parseDate(c, "from")
	if !ok {
		return
	}

	events, err := h.attendanceService.RecentActivity(c.Request.Context(), limit, from)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, events)
}

// Summary godoc
// GET /api/v1/attendance/summary
func (h *AttendanceHandler) Summary(c *gin.Context) {
	summary, err := h.attendanceService.Summary(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"summary":       summary,
		"avg_stay_text": service.FormatDuration(int64(summary.AvgStaySeconds)),
	})
}

// Open godoc
// GET /api/v1/attendance/open/:student_id
// Returns the student's open visit, or null.
func (h *AttendanceHandler) Open(c *gin.Context) {
	studentID, ok := paramID(c, "student_id")
	if !ok {
		return
	}
	visit, err := h.attendanceService.OpenFor(c.Request.Context(), studentID)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, visit)
}

// CheckIn godoc
// POST /api/v1/attendance/check-in
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req model.StudentIDRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	visit, err := h.attendanceService.CheckIn(c.Request.Context(), req.StudentID)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusCreated, visit)
}

// CheckOut godoc
// POST /api/v1/attendance/check-out
// Closes the student's latest open visit; data is null when there is none.
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	var req model.StudentIDRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	visit, err := h.attendanceService.CheckOut(c.Request.Context(), req.StudentID)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, visit)
}

// Renew godoc
// POST /api/v1/attendance/renew
// Closes any open visit and opens a fresh one.
func (h *AttendanceHandler) Renew(c *gin.Context) {
	var req model.StudentIDRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	visit, err := h.attendanceService.Renew(c.Request.Context(), req.StudentID)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusCreated, visit)
}

// Scan godoc
// POST /api/v1/attendance/scan
// Kiosk entry point: toggles the presence of the student with the LRN.
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req model.ScanRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attendanceService.Scan(c.Request.Context(), req.LRN)
	if err != nil {
		failWith(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Export godoc
// GET /api/v1/attendance/export.xlsx?from=&to=
// Downloads the visits of a date range as a spreadsheet.
func (h *AttendanceHandler) Export(c *gin.Context) {
	fromDate, ok := parseDate(c, "from")
	if !ok {
		return
	}
	toDate, ok := parseDate(c, "to")
	if !ok {
		return
	}
	from, to := ExportRange(fromDate, toDate, time.Now())
	if !to.After(from) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidDate, map[string]string{"to": "must not be before from"})
		return
	}

	visits, err := h.attendanceService.Between(c.Request.Context(), from, to)
	if err != nil {
		failWith(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAttendance(&buf, visits); err != nil {
		failWith(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.AttendanceFilename(from, to)+`"`)
	c.Data(http.StatusOK, xlsxMimeType, buf.Bytes())
}
