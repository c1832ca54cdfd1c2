// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"time"
)

// StalenessResult contains the result of a staleness check.
type StalenessResult struct {
	// IsStale indicates whether the cached data is older than the staleness window.
	IsStale bool
	// Age is how old the cached data is.
	Age time.Duration
	// Reason provides a human-readable explanation for the staleness decision.
	Reason string
}

// CheckCacheStaleness decides whether a cached entry fetched at fetchedAt may
// still be served unflagged at now. A non-positive window means every cached
// entry is stale.
func CheckCacheStaleness(fetchedAt, now time.Time, window time.Duration) StalenessResult {
	age := now.Sub(fetchedAt)
	if window <= 0 {
		return StalenessResult{IsStale: true, Age: age, Reason: "no staleness window configured"}
	}
	if age > window {
		return StalenessResult{
			IsStale: true,
			Age:     age,
			Reason: fmt.Sprintf("cached at %s, older than %s window",
				fetchedAt.Format("2006-01-02 15:04"), window),
		}
	}
	return StalenessResult{
		IsStale: false,
		Age:     age,
		Reason:  fmt.Sprintf("cached at %s, within %s window", fetchedAt.Format("2006-01-02 15:04"), window),
	}
}

// DefaultWorkingDays returns standard Monday-Friday working days.
func DefaultWorkingDays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// IsWorkingDay checks if a given date is a trading day.
// It accounts for both weekends (based on workingDays) and holidays.
func IsWorkingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) bool {
	isWorkDay := false
	for _, wd := range workingDays {
		if wd == t.Weekday() {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	for _, h := range holidays {
		if sameDay(t, h) {
			return false
		}
	}
	return true
}

// GetLastTradingDay returns the most recent trading day on or before t,
// keeping t's location.
func GetLastTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	current := dateOnly(t)

	// Walk backwards up to 15 days (covers Spring Festival and Golden Week)
	for i := 0; i < 15; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}
	return dateOnly(t)
}

// GetPreviousTradingDay returns the trading day strictly before t.
func GetPreviousTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	return GetLastTradingDay(dateOnly(t).AddDate(0, 0, -1), workingDays, holidays)
}

// AnalysisDate returns the trading day a report should describe.
// Pre-market reports describe the current day. Post-market reports describe
// the current day once the market has closed (closeHour in loc), otherwise
// the previous trading day.
func AnalysisDate(postMarket bool, now time.Time, loc *time.Location, closeHour int) time.Time {
	local := now.In(loc)
	if !postMarket {
		return dateOnly(local)
	}
	if local.Hour() < closeHour || !IsWorkingDay(local, DefaultWorkingDays(), nil) {
		return GetPreviousTradingDay(local, DefaultWorkingDays(), nil)
	}
	return dateOnly(local)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
