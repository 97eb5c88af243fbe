package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gigledger/gigledger/routes"
)

// Summary is the aggregated earnings picture for one user over a date window.
type Summary struct {
	From          time.Time           `json:"from"`
	To            time.Time           `json:"to"`
	RouteCount    int                 `json:"routeCount"`
	TotalMinutes  int                 `json:"totalMinutes"`
	TotalDistance float64             `json:"totalDistanceKm"`
	GrossIncome   float64             `json:"grossIncome"`
	Tips          float64             `json:"tips"`
	Expenses      float64             `json:"expenses"`
	NetIncome     float64             `json:"netIncome"`
	HourlyRate    float64             `json:"hourlyRate"`
	ByWorkType    []WorkTypeBreakdown `json:"byWorkType"`
	Daily         []DailyPoint        `json:"daily"`
}

// WorkTypeBreakdown aggregates one work type within the window.
type WorkTypeBreakdown struct {
	WorkType   string  `json:"workType"`
	RouteCount int     `json:"routeCount"`
	Minutes    int     `json:"minutes"`
	NetIncome  float64 `json:"netIncome"`
	HourlyRate float64 `json:"hourlyRate"`
}

// DailyPoint is one day of the per-day earnings series.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	NetIncome float64   `json:"netIncome"`
	Minutes   int       `json:"minutes"`
}

// Service computes dashboard summaries from the routes repo. It holds no
// state of its own.
type Service struct {
	routes routes.RouteRepo
	logger zerolog.Logger
}

// NewService initializes the dashboard service.
func NewService(routeRepo routes.RouteRepo, logger zerolog.Logger) (*Service, error) {
	if routeRepo == nil {
		return nil, errors.New("[dashboard.NewService] route repo is required")
	}
	return &Service{routes: routeRepo, logger: logger}, nil
}

// Summary aggregates the user's routes with Date in [from, to). Only the
// requesting user's entries contribute.
func (s *Service) Summary(ctx context.Context, userID string, from, to time.Time) (*Summary, error) {
	entries, err := s.routes.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Summary] Routes.ListByUser")
	}

	summary := &Summary{From: from, To: to}
	byWorkType := map[string]*WorkTypeBreakdown{}
	byDay := map[time.Time]*DailyPoint{}

	for _, entry := range entries {
		summary.RouteCount++
		summary.TotalMinutes += entry.Minutes
		summary.TotalDistance += entry.DistanceKm
		summary.GrossIncome += entry.GrossIncome
		summary.Tips += entry.Tips
		summary.Expenses += entry.Expenses
		summary.NetIncome += entry.NetIncome()

		wt, ok := byWorkType[entry.WorkType]
		if !ok {
			wt = &WorkTypeBreakdown{WorkType: entry.WorkType}
			byWorkType[entry.WorkType] = wt
		}
		wt.RouteCount++
		wt.Minutes += entry.Minutes
		wt.NetIncome += entry.NetIncome()

		day := entry.Date.Truncate(24 * time.Hour)
		point, ok := byDay[day]
		if !ok {
			point = &DailyPoint{Date: day}
			byDay[day] = point
		}
		point.NetIncome += entry.NetIncome()
		point.Minutes += entry.Minutes
	}

	summary.HourlyRate = hourlyRate(summary.NetIncome, summary.TotalMinutes)
	for _, wt := range byWorkType {
		wt.HourlyRate = hourlyRate(wt.NetIncome, wt.Minutes)
		summary.ByWorkType = append(summary.ByWorkType, *wt)
	}
	sort.Slice(summary.ByWorkType, func(i, j int) bool {
		return summary.ByWorkType[i].WorkType < summary.ByWorkType[j].WorkType
	})
	for _, point := range byDay {
		summary.Daily = append(summary.Daily, *point)
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date.Before(summary.Daily[j].Date)
	})

	return summary, nil
}

func hourlyRate(net float64, minutes int) float64 {
	if minutes <= 0 {
		return 0
	}
	return net / (float64(minutes) / 60)
}
