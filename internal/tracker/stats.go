package tracker

import (
	"math"
	"time"

	"readingflow/internal/models"
)

// MaxStreakLookback caps the backward day scan in Streak
const MaxStreakLookback = 3660

const dayLayout = "2006-01-02"

// Stats bundles every dashboard value derived from the state
type Stats struct {
	Streak         int                     `json:"streak"`
	TodayPages     int                     `json:"todayPages"`
	TotalPages     int                     `json:"totalPages"`
	CompletedBooks int                     `json:"completedBooks"`
	DailyGoal      int                     `json:"dailyGoal"`
	GoalProgress   int                     `json:"goalProgress"`
	LastSevenDays  [7]int                  `json:"lastSevenDays"`
	TodayReadings  []models.ReadingSession `json:"todayReadings"`
}

// dayKey formats t as a calendar date in loc
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// daysAgo returns midnight n calendar days before now, in now's location
func daysAgo(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-n, 0, 0, 0, 0, now.Location())
}

// TotalPages sums pages over all reading sessions
func TotalPages(state *models.AppState) int {
	total := 0
	for _, r := range state.Readings {
		total += r.Pages
	}
	return total
}

// PagesOn sums pages of sessions logged on the calendar day of day
func PagesOn(state *models.AppState, day time.Time) int {
	key := dayKey(day, day.Location())
	total := 0
	for _, r := range state.Readings {
		if dayKey(r.Date, day.Location()) == key {
			total += r.Pages
		}
	}
	return total
}

// TodayPages sums pages of sessions logged on now's calendar day
func TodayPages(state *models.AppState, now time.Time) int {
	return PagesOn(state, now)
}

// TodayReadings returns the sessions logged today in insertion order
func TodayReadings(state *models.AppState, now time.Time) []models.ReadingSession {
	key := dayKey(now, now.Location())
	out := []models.ReadingSession{}
	for _, r := range state.Readings {
		if dayKey(r.Date, now.Location()) == key {
			out = append(out, r)
		}
	}
	return out
}

// Streak counts consecutive calendar days, ending today, with at least one
// session. The scan never goes further back than the earliest session or
// MaxStreakLookback days, whichever is closer.
func Streak(state *models.AppState, now time.Time) int {
	if len(state.Readings) == 0 {
		return 0
	}

	loc := now.Location()
	days := make(map[string]struct{}, len(state.Readings))
	earliest := state.Readings[0].Date
	for _, r := range state.Readings {
		days[dayKey(r.Date, loc)] = struct{}{}
		if r.Date.Before(earliest) {
			earliest = r.Date
		}
	}

	limit := calendarDaysBetween(earliest.In(loc), now) + 1
	if limit > MaxStreakLookback {
		limit = MaxStreakLookback
	}

	streak := 0
	for i := 0; i < limit; i++ {
		if _, ok := days[dayKey(daysAgo(now, i), loc)]; !ok {
			break
		}
		streak++
	}
	return streak
}

// calendarDaysBetween returns the number of calendar days from a to b
// (negative when a is after b), ignoring time of day and DST.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// CompletedBooks counts books whose current page reached the total
func CompletedBooks(state *models.AppState) int {
	count := 0
	for _, b := range state.Books {
		if b.Completed() {
			count++
		}
	}
	return count
}

// ReadableBooks returns the books that still have pages left
func ReadableBooks(state *models.AppState) []models.Book {
	out := []models.Book{}
	for _, b := range state.Books {
		if !b.Completed() {
			out = append(out, b)
		}
	}
	return out
}

// LastSevenDays returns pages per day, six days ago first and today last
func LastSevenDays(state *models.AppState, now time.Time) [7]int {
	var days [7]int
	for i := 6; i >= 0; i-- {
		days[6-i] = PagesOn(state, daysAgo(now, i))
	}
	return days
}

// CompletionPercentage returns how much of the book has been read, 0-100.
// A book with no pages counts as 0%.
func CompletionPercentage(book models.Book) int {
	if book.TotalPages <= 0 || book.CurrentPages <= 0 {
		return 0
	}
	return percent(book.CurrentPages, book.TotalPages)
}

// GoalProgress returns today's pages as a percentage of the daily goal, 0-100
func GoalProgress(state *models.AppState, now time.Time) int {
	if state.DailyGoal <= 0 {
		return 0
	}
	return percent(TodayPages(state, now), state.DailyGoal)
}

func percent(part, whole int) int {
	p := int(math.Round(float64(part) / float64(whole) * 100))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// Summary computes every dashboard value at once
func Summary(state *models.AppState, now time.Time) Stats {
	return Stats{
		Streak:         Streak(state, now),
		TodayPages:     TodayPages(state, now),
		TotalPages:     TotalPages(state),
		CompletedBooks: CompletedBooks(state),
		DailyGoal:      state.DailyGoal,
		GoalProgress:   GoalProgress(state, now),
		LastSevenDays:  LastSevenDays(state, now),
		TodayReadings:  TodayReadings(state, now),
	}
}
