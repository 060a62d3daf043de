package models

import "time"

// DefaultDailyGoal is the page goal a fresh state starts with
const DefaultDailyGoal = 20

// Book represents a book in the reader's collection
type Book struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Genre        string `json:"genre"`
	TotalPages   int    `json:"totalPages"`
	CurrentPages int    `json:"currentPages"`
}

// Completed reports whether every page of the book has been read
func (b Book) Completed() bool {
	return b.CurrentPages >= b.TotalPages
}

// ReadingSession represents a single logged stretch of reading.
// BookID is a weak reference: the book may have been deleted since.
type ReadingSession struct {
	ID        int64     `json:"id"`
	BookID    string    `json:"bookId"`
	Pages     int       `json:"pages"`
	TimeSpent int       `json:"time"` // minutes
	Notes     string    `json:"notes"`
	Date      time.Time `json:"date"`
}

// AppState is the whole persisted state of the tracker
type AppState struct {
	Books        []Book           `json:"books"`
	Readings     []ReadingSession `json:"readings"`
	DailyGoal    int              `json:"dailyGoal"`
	Achievements []string         `json:"achievements"`
}

// DefaultState returns the state a new reader starts with
func DefaultState() *AppState {
	return &AppState{
		Books:        []Book{},
		Readings:     []ReadingSession{},
		DailyGoal:    DefaultDailyGoal,
		Achievements: []string{},
	}
}

// Clone returns a deep copy of the state
func (s *AppState) Clone() *AppState {
	clone := &AppState{
		Books:        make([]Book, len(s.Books)),
		Readings:     make([]ReadingSession, len(s.Readings)),
		DailyGoal:    s.DailyGoal,
		Achievements: make([]string, len(s.Achievements)),
	}
	copy(clone.Books, s.Books)
	copy(clone.Readings, s.Readings)
	copy(clone.Achievements, s.Achievements)
	return clone
}

// Achievement describes a milestone shown to the reader
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// AchievementStatus pairs an achievement with whether it is currently unlocked
type AchievementStatus struct {
	Achievement
	Unlocked bool `json:"unlocked"`
}
