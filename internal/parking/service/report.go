package service

import (
	"context"
	"time"

	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/store"
)

// ReportService builds the daily revenue and traffic views. Rendering
// to a spreadsheet is the export tool's job, this only selects the
// business date and assembles the rows.
type ReportService struct {
	sessions store.SessionStore
	now      func() time.Time
}

func NewReportService(sessions store.SessionStore) *ReportService {
	return &ReportService{sessions: sessions, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// BusinessDate tolerates a midnight-scheduled export firing slightly
// late: a run between 00:00 and 00:30 reports on the previous day.
func BusinessDate(now time.Time) time.Time {
	if now.Hour() == 0 && now.Minute() <= 30 {
		now = now.AddDate(0, 0, -1)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func (s *ReportService) DailyReport(ctx context.Context) (*models.DailyReport, error) {
	date := BusinessDate(s.now())

	revenue, err := s.sessions.RevenueByCheckout(ctx, date)
	if err != nil {
		return nil, err
	}

	traffic, err := s.sessions.TrafficByCheckin(ctx, date)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, r := range revenue {
		total += r.Price
	}

	return &models.DailyReport{
		Date:    date.Format("2006-01-02"),
		Revenue: revenue,
		Total:   total,
		Traffic: traffic,
	}, nil
}
