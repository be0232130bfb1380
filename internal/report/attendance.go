// Package report renders attendance data as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/service"
	"github.com/xuri/excelize/v2"
)

const (
	attendanceSheet = "Attendance"
	timeLayout      = "2006-01-02 15:04:05"
)

var attendanceHeader = []interface{}{"Visit", "Student", "Check in", "Check out", "Stay"}

// AttendanceRow flattens one visit into spreadsheet cells. Open visits
// have an empty check-out and stay.
func AttendanceRow(v model.AttendanceWithStudent) []interface{} {
	checkOut, stay := "", ""
	if v.CheckOut != nil {
		checkOut = v.CheckOut.Format(timeLayout)
		stay = service.FormatDuration(service.StaySeconds(v.CheckIn, *v.CheckOut))
	}
	return []interface{}{v.ID, v.StudentName, v.CheckIn.Format(timeLayout), checkOut, stay}
}

// AttendanceFilename names the export of the range [from, to).
func AttendanceFilename(from, to time.Time) string {
	return fmt.Sprintf("attendance_%s_%s.xlsx", from.Format("20060102"), to.AddDate(0, 0, -1).Format("20060102"))
}

// WriteAttendance writes the visits as an .xlsx workbook.
func WriteAttendance(w io.Writer, visits []model.AttendanceWithStudent) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attendanceSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(attendanceSheet, "A1", &attendanceHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(attendanceSheet, "A1", "E1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(attendanceSheet, "B", "D", 24); err != nil {
		return err
	}

	for i, v := range visits {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := AttendanceRow(v)
		if err := f.SetSheetRow(attendanceSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}
