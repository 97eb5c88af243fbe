package routes

import (
	"time"

	"github.com/pkg/errors"
)

// Route is a single worked shift or delivery run: where the money and the
// hours went for one day of one work type.
type Route struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Date        time.Time `json:"date"`
	WorkType    string    `json:"workType"`
	DistanceKm  float64   `json:"distanceKm"`
	Minutes     int       `json:"minutes"`
	GrossIncome float64   `json:"grossIncome"`
	Tips        float64   `json:"tips"`
	Expenses    float64   `json:"expenses"`
	Notes       string    `json:"notes,omitempty"`
}

// NetIncome is gross plus tips minus expenses.
func (r *Route) NetIncome() float64 {
	return r.GrossIncome + r.Tips - r.Expenses
}

// HourlyRate returns the net hourly rate, zero for zero-minute entries.
func (r *Route) HourlyRate() float64 {
	if r.Minutes <= 0 {
		return 0
	}
	return r.NetIncome() / (float64(r.Minutes) / 60)
}

// Validate rejects entries that cannot represent a real shift.
func (r *Route) Validate() error {
	if r.UserID == "" {
		return errors.New("[Route.Validate] user id is required")
	}
	if r.WorkType == "" {
		return errors.New("[Route.Validate] work type is required")
	}
	if r.Date.IsZero() {
		return errors.New("[Route.Validate] date is required")
	}
	if r.Minutes < 0 {
		return errors.New("[Route.Validate] minutes cannot be negative")
	}
	if r.DistanceKm < 0 {
		return errors.New("[Route.Validate] distance cannot be negative")
	}
	return nil
}

// WorkType is a per-user configured kind of gig work (courier, rideshare, ...)
// with an optional hourly earnings target for the dashboard.
type WorkType struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	Name         string  `json:"name"`
	HourlyTarget float64 `json:"hourlyTarget,omitempty"`
}

// Validate checks the minimal shape of a work type definition.
func (w *WorkType) Validate() error {
	if w.UserID == "" {
		return errors.New("[WorkType.Validate] user id is required")
	}
	if w.Name == "" {
		return errors.New("[WorkType.Validate] name is required")
	}
	if w.HourlyTarget < 0 {
		return errors.New("[WorkType.Validate] hourly target cannot be negative")
	}
	return nil
}
