package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"readingflow/internal/models"
)

func TestRules_FixedOrder(t *testing.T) {
	ids := make([]string, 0, len(Rules))
	for _, r := range Rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"first-pages", "read-100", "read-500", "read-1000",
		"first-book", "streak-7", "streak-30", "three-books",
	}, ids)
}

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name     string
		state    func() *models.AppState
		expected []string
	}{
		{
			name:     "empty state",
			state:    models.DefaultState,
			expected: []string{},
		},
		{
			name: "one small session",
			state: func() *models.AppState {
				s := models.DefaultState()
				s.Readings = []models.ReadingSession{sessionOn("x", 1, testNow)}
				return s
			},
			expected: []string{"first-pages"},
		},
		{
			name: "page thresholds are inclusive",
			state: func() *models.AppState {
				s := models.DefaultState()
				s.Readings = []models.ReadingSession{
					sessionOn("x", 400, testNow.AddDate(0, 0, -10)),
					sessionOn("x", 600, testNow.AddDate(0, 0, -12)),
				}
				return s
			},
			expected: []string{"first-pages", "read-100", "read-500", "read-1000"},
		},
		{
			name: "completed book and collection",
			state: func() *models.AppState {
				s := models.DefaultState()
				s.Books = []models.Book{
					{ID: "1", TotalPages: 10, CurrentPages: 10},
					{ID: "2", TotalPages: 10},
					{ID: "3", TotalPages: 10},
				}
				return s
			},
			expected: []string{"first-book", "three-books"},
		},
		{
			name: "thirty day streak",
			state: func() *models.AppState {
				s := models.DefaultState()
				for d := 0; d < 30; d++ {
					s.Readings = append(s.Readings, sessionOn("x", 1, testNow.AddDate(0, 0, -d)))
				}
				return s
			},
			expected: []string{"first-pages", "streak-7", "streak-30"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Evaluate(tc.state(), testNow))
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	s := models.DefaultState()
	s.Readings = []models.ReadingSession{sessionOn("x", 150, testNow)}

	first := Evaluate(s, testNow)
	s.Achievements = first
	second := Evaluate(s, testNow)

	assert.Equal(t, first, second)
}

func TestDiffAchievements(t *testing.T) {
	gained, lost := diffAchievements([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"c"}, gained)
	assert.Equal(t, []string{"a"}, lost)

	gained, lost = diffAchievements([]string{"a"}, []string{"a"})
	assert.Empty(t, gained)
	assert.Empty(t, lost)
}
