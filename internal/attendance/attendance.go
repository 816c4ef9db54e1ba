// Package attendance groups worker punches into per-day report rows and
// defines the boundary to the external productivity calculator.
package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
)

// DateLayout is the calendar-day format used in rows and range queries.
const DateLayout = "2006-01-02"

// TimeLayout formats punch times within a row.
const TimeLayout = "15:04:05"

// UnknownDepartment labels rows whose worker has no department.
const UnknownDepartment = "Unknown"

// DayRow is one worker's punches on one calendar day.
type DayRow struct {
	Date       string   `json:"date"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Photo      string   `json:"photo,omitempty"`
	InTimes    []string `json:"in_times"`
	OutTimes   []string `json:"out_times"`
}

// GroupByDay folds records into one row per day in loc, newest day first.
// Punch times within a row are chronological.
func GroupByDay(records []*models.AttendanceRecord, loc *time.Location) []DayRow {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]*models.AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	byDate := make(map[string]*DayRow)
	for _, r := range sorted {
		at := r.RecordedAt.In(loc)
		date := at.Format(DateLayout)
		row, ok := byDate[date]
		if !ok {
			row = &DayRow{
				Date:       date,
				Name:       models.UnknownWorkerName,
				Department: UnknownDepartment,
				InTimes:    []string{},
				OutTimes:   []string{},
			}
			if w := r.Worker; w != nil {
				if w.Name != "" {
					row.Name = w.Name
				}
				row.Photo = w.Photo
				if w.Department != nil && w.Department.Name != "" {
					row.Department = w.Department.Name
				}
			}
			byDate[date] = row
		}
		if r.Presence {
			row.InTimes = append(row.InTimes, at.Format(TimeLayout))
		} else {
			row.OutTimes = append(row.OutTimes, at.Format(TimeLayout))
		}
	}

	rows := make([]DayRow, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	return rows
}

// Range is a half-open time interval [From, To). Zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// Range errors.
var (
	ErrBadDate       = errors.New("dates must be formatted YYYY-MM-DD")
	ErrInvertedRange = errors.New("From date cannot be greater than To date")
)

// ParseRange parses inclusive calendar days in loc. An empty string leaves
// that bound open.
func ParseRange(from, to string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	var r Range
	if from != "" {
		t, err := time.ParseInLocation(DateLayout, from, loc)
		if err != nil {
			return Range{}, ErrBadDate
		}
		r.From = t
	}
	if to != "" {
		t, err := time.ParseInLocation(DateLayout, to, loc)
		if err != nil {
			return Range{}, ErrBadDate
		}
		r.To = t.AddDate(0, 0, 1)
	}
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return Range{}, ErrInvertedRange
	}
	return r, nil
}

// Bounded reports whether both ends of the range are set.
func (r Range) Bounded() bool {
	return !r.From.IsZero() && !r.To.IsZero()
}

// ProductivityCalculator turns raw punches into a productivity report. It
// is implemented outside this module; the report is passed through as-is.
type ProductivityCalculator interface {
	Calculate(ctx context.Context, records []*models.AttendanceRecord, r Range) (any, error)
}

// Report is the attendance view of one worker.
type Report struct {
	Rows         []DayRow `json:"rows"`
	Productivity any      `json:"productivity,omitempty"`
}
