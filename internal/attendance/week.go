// Package attendance shows the weekly punch breakdown of one employee.
package attendance

import (
	"context"
	"time"

	"github.com/pointage-admin/pointage-admin/internal/entity"
)

// DetailsAPI is the backend call behind the weekly view.
type DetailsAPI interface {
	PointageDetails(ctx context.Context, token, matricule string, year, week int) ([]entity.PointageDetail, error)
}

// Week is one ISO week of attendance for a matricule.
type Week struct {
	Matricule string
	Year      int
	Week      int
	Rows      []entity.PointageDetail
}

// ISOWeek returns the ISO year and week of t.
func ISOWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// Monday returns the first day of ISO week (year, week).
func Monday(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

// Shift moves (year, week) by delta weeks across year boundaries.
func Shift(year, week, delta int) (int, int) {
	return Monday(year, week).AddDate(0, 0, 7*delta).ISOWeek()
}

// ValidWeek reports whether (year, week) names an existing ISO week.
func ValidWeek(year, week int) bool {
	if year < 2000 || year > 2100 || week < 1 || week > 53 {
		return false
	}
	y, w := Monday(year, week).ISOWeek()
	return y == year && w == week
}

// Load fetches the week of matricule.
func Load(ctx context.Context, api DetailsAPI, token, matricule string, year, week int) (Week, error) {
	out := Week{Matricule: matricule, Year: year, Week: week}
	rows, err := api.PointageDetails(ctx, token, matricule, year, week)
	if err != nil {
		return out, err
	}
	out.Rows = rows
	return out, nil
}
