package tracker

import (
	"time"

	"readingflow/internal/models"
)

// Rule is an achievement together with the condition that unlocks it.
// Predicates must not modify the state.
type Rule struct {
	models.Achievement
	Predicate func(state *models.AppState, now time.Time) bool
}

// Rules is the fixed, ordered achievement rule set
var Rules = []Rule{
	{
		Achievement: models.Achievement{ID: "first-pages", Name: "First Pages", Description: "Log your first reading session", Icon: "📖"},
		Predicate: func(s *models.AppState, _ time.Time) bool {
			return len(s.Readings) >= 1
		},
	},
	{
		Achievement: models.Achievement{ID: "read-100", Name: "100 Pages", Description: "Read 100 pages in total", Icon: "💯"},
		Predicate: func(s *models.AppState, _ time.Time) bool {
			return TotalPages(s) >= 100
		},
	},
	{
		Achievement: models.Achievement{ID: "read-500", Name: "500 Pages", Description: "Read 500 pages in total", Icon: "🔥"},
		Predicate: func(s *models.AppState, _ time.Time) bool {
			return TotalPages(s) >= 500
		},
	},
	{
		Achievement: models.Achievement{ID: "read-1000", Name: "1000 Pages", Description: "Read 1000 pages in total", Icon: "⭐"},
		Predicate: func(s *models.AppState, _ time.Time) bool {
			return TotalPages(s) >= 1000
		},
	},
	{
		Achievement: models.Achievement{ID: "first-book", Name: "Book Finished", Description: "Finish your first book", Icon: "✅"},
		Predicate: func(s *models.AppState, _ time.Time) bool {
			return CompletedBooks(s) >= 1
		},
	},
	{
		Achievement: models.Achievement{ID: "streak-7", Name: "7-Day Streak", Description: "Read 7 days in a row", Icon: "🔥"},
		Predicate: func(s *models.AppState, now time.Time) bool {
			return Streak(s, now) >= 7
		},
	},
	{
		Achievement: models.Achievement{ID: "streak-30", Name: "Dedicated Reader", Description: "Read 30 days in a row", Icon: "👑"},
		Predicate: func(s *models.AppState, now time.Time) bool {
			return Streak(s, now) >= 30
		},
	},
	{
		Achievement: models.Achievement{ID: "three-books", Name: "Collector", Description: "Add 3 books to your list", Icon: "📚"},
		Predicate: func(s *models.AppState, _ time.Time) bool {
			return len(s.Books) >= 3
		},
	},
}

// Evaluate returns the ids of every rule that holds, in rule order.
// The result replaces the stored set; nothing stays unlocked once its
// condition stops holding.
func Evaluate(state *models.AppState, now time.Time) []string {
	unlocked := []string{}
	for _, rule := range Rules {
		if rule.Predicate(state, now) {
			unlocked = append(unlocked, rule.ID)
		}
	}
	return unlocked
}

// diffAchievements returns ids present in next but not prev, and the reverse
func diffAchievements(prev, next []string) (gained, lost []string) {
	had := make(map[string]bool, len(prev))
	for _, id := range prev {
		had[id] = true
	}
	has := make(map[string]bool, len(next))
	for _, id := range next {
		has[id] = true
		if !had[id] {
			gained = append(gained, id)
		}
	}
	for _, id := range prev {
		if !has[id] {
			lost = append(lost, id)
		}
	}
	return gained, lost
}
