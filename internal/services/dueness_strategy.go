// Package services holds the orchestration around the ledger: mirroring new
// records to the remote store and posting recurring transactions.
package services

import (
	"fmt"
	"time"

	"keeptrack/internal/core"
)

// DuenessChecker decides whether a recurring transaction should be posted
// again, given when it last was and the date of the original.
type DuenessChecker interface {
	IsDue(lastRun, now time.Time, start core.Date) bool
}

// DailyChecker is due once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	return core.DateOf(lastRun) != core.DateOf(now)
}

// WeeklyChecker is due when 7 or more days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	return core.DateOf(now).Sub(core.DateOf(lastRun).Time) >= 7*24*time.Hour
}

// MonthlyChecker is due once per month, from the start day onward. Start days
// past the end of a short month fall on its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastRun, now time.Time, start core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(now.Year(), now.Month(), start.Day())
}

// YearlyChecker is due once per year, from the start month and day onward.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastRun, now time.Time, start core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() {
		return false
	}
	switch {
	case now.Month() < start.Month():
		return false
	case now.Month() == start.Month():
		return now.Day() >= clampDay(now.Year(), now.Month(), start.Day())
	}
	return true
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return min(day, last)
}

var duenessStrategies = map[core.Recurrence]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for r.
func GetDuenessChecker(r core.Recurrence) (DuenessChecker, error) {
	checker, ok := duenessStrategies[r]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence: %s", r)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker for r.
func RegisterDuenessChecker(r core.Recurrence, checker DuenessChecker) {
	duenessStrategies[r] = checker
}
