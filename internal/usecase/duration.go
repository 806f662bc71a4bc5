package usecase

import (
	"time"

	"github.com/user/missoula-scraper/internal/entity"
)

// DurationAggregator totals recording lengths. The weekly average divides by
// the current week of the year, not by the length of the scraped window.
type DurationAggregator struct {
	total time.Duration
	count int
	now   func() time.Time
}

func NewDurationAggregator(now func() time.Time) *DurationAggregator {
	if now == nil {
		now = time.Now
	}
	return &DurationAggregator{now: now}
}

func (a *DurationAggregator) Add(d time.Duration) {
	a.total += d
	a.count++
}

func (a *DurationAggregator) Report() *entity.DurationReport {
	_, week := a.now().ISOWeek()
	report := &entity.DurationReport{
		Total:      a.total,
		Count:      a.count,
		WeekOfYear: week,
	}
	if week > 0 {
		report.AveragePerWeek = a.total / time.Duration(week)
	}
	return report
}
