package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readingflow/internal/models"
	"readingflow/internal/storage/stubs"
)

// fakeClock is a settable time source
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// flakyStorage wraps MockDB and fails writes while err is set
type flakyStorage struct {
	*stubs.MockDB
	err error
}

func (f *flakyStorage) Put(ctx context.Context, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	return f.MockDB.Put(ctx, key, value)
}

func (f *flakyStorage) Delete(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	return f.MockDB.Delete(ctx, key)
}

func newTestTracker(t *testing.T) (*Tracker, *stubs.MockDB, *fakeClock) {
	t.Helper()

	db := stubs.NewMockDB()
	clock := &fakeClock{now: testNow}
	tr := New(NewStore(db, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, tr.Load(context.Background()))
	return tr, db, clock
}

func TestTracker_AddBook(t *testing.T) {
	tr, db, _ := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "  Dom Casmurro ", Author: "Machado", TotalPages: 256, CurrentPages: 300})
	require.NoError(t, err)

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Dom Casmurro", book.Title)
	assert.Equal(t, 256, book.CurrentPages, "current pages should clamp to total")

	stored, ok := tr.Book(book.ID)
	require.True(t, ok)
	assert.Equal(t, book, stored)
	assert.Greater(t, db.Writes(), 0)
}

func TestTracker_AddBook_UniqueIDs(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	a, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 10})
	require.NoError(t, err)
	b, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 10})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestTracker_AddBook_InvalidInput(t *testing.T) {
	testCases := []struct {
		name  string
		input BookInput
	}{
		{"missing title", BookInput{Title: "   ", TotalPages: 10}},
		{"zero pages", BookInput{Title: "A", TotalPages: 0}},
		{"negative pages", BookInput{Title: "A", TotalPages: -5}},
		{"negative current", BookInput{Title: "A", TotalPages: 10, CurrentPages: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, db, _ := newTestTracker(t)
			writes := db.Writes()

			_, err := tr.AddBook(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			assert.Empty(t, tr.Snapshot().Books)
			assert.Equal(t, writes, db.Writes(), "invalid input must not persist")
		})
	}
}

func TestTracker_InvalidInputMessageUsesJSONNames(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	_, err := tr.AddBook(context.Background(), BookInput{Title: "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "totalPages must be greater than 0")
}

func TestTracker_AddReadingSession_Scenario(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 100})
	require.NoError(t, err)

	session, err := tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 100, TimeSpent: 45, Notes: "great"})
	require.NoError(t, err)
	assert.Equal(t, testNow, session.Date)
	assert.Equal(t, 45, session.TimeSpent)

	updated, ok := tr.Book(book.ID)
	require.True(t, ok)
	assert.Equal(t, 100, updated.CurrentPages)

	achievements := tr.Snapshot().Achievements
	assert.Contains(t, achievements, "first-book")
	assert.Contains(t, achievements, "read-100")
	assert.Contains(t, achievements, "first-pages")
	assert.NotContains(t, achievements, "read-500")
}

func TestTracker_AddReadingSession_ClampsToTotal(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 50, CurrentPages: 40})
	require.NoError(t, err)

	_, err = tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 30})
	require.NoError(t, err)

	updated, _ := tr.Book(book.ID)
	assert.Equal(t, 50, updated.CurrentPages)
	// The session keeps the pages actually logged
	assert.Equal(t, 30, tr.Stats().TotalPages)
}

func TestTracker_AddReadingSession_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		input SessionInput
	}{
		{"missing book", SessionInput{Pages: 10}},
		{"zero pages", SessionInput{BookID: "x", Pages: 0}},
		{"negative pages", SessionInput{BookID: "x", Pages: -3}},
		{"negative time", SessionInput{BookID: "x", Pages: 3, TimeSpent: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, _, _ := newTestTracker(t)
			_, err := tr.AddReadingSession(context.Background(), tc.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, tr.Snapshot().Readings)
		})
	}
}

func TestTracker_AddReadingSession_UnknownBookTolerated(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	session, err := tr.AddReadingSession(context.Background(), SessionInput{BookID: "deleted-book", Pages: 12})
	require.NoError(t, err)

	assert.Equal(t, 12, tr.Stats().TotalPages)
	assert.Equal(t, UnknownBookTitle, tr.BookTitle(session.BookID))
}

func TestTracker_SessionIDsUniqueWithinSameMillisecond(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	a, err := tr.AddReadingSession(ctx, SessionInput{BookID: "b", Pages: 1})
	require.NoError(t, err)
	b, err := tr.AddReadingSession(ctx, SessionInput{BookID: "b", Pages: 1})
	require.NoError(t, err)

	assert.Equal(t, testNow.UnixMilli(), a.ID)
	assert.Equal(t, a.ID+1, b.ID)
}

func TestTracker_TotalPagesEqualsSumOfSessions(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	ctx := context.Background()

	pages := []int{1, 7, 33, 120, 2, 45}
	sum := 0
	for i, p := range pages {
		clock.now = testNow.Add(time.Duration(i) * time.Hour)
		_, err := tr.AddReadingSession(ctx, SessionInput{BookID: "any", Pages: p})
		require.NoError(t, err)
		sum += p
	}

	assert.Equal(t, sum, TotalPages(tr.Snapshot()))
}

func TestTracker_EditBookKeepsHistory(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "Draft", TotalPages: 300})
	require.NoError(t, err)
	_, err = tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 120})
	require.NoError(t, err)

	edited, err := tr.EditBook(ctx, book.ID, BookInput{Title: "Final", Author: "Someone", Genre: "Novel", TotalPages: 100, CurrentPages: 120})
	require.NoError(t, err)

	assert.Equal(t, book.ID, edited.ID)
	assert.Equal(t, "Final", edited.Title)
	assert.Equal(t, 100, edited.CurrentPages, "current pages clamp to the new total")

	state := tr.Snapshot()
	require.Len(t, state.Books, 1)
	require.Len(t, state.Readings, 1)
	assert.Equal(t, book.ID, state.Readings[0].BookID)
	assert.Contains(t, state.Achievements, "first-book")
}

func TestTracker_EditBook_Errors(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.EditBook(ctx, "missing", BookInput{Title: "A", TotalPages: 10})
	assert.ErrorIs(t, err, ErrBookNotFound)

	book, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 10})
	require.NoError(t, err)

	_, err = tr.EditBook(ctx, book.ID, BookInput{Title: "A", TotalPages: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	unchanged, _ := tr.Book(book.ID)
	assert.Equal(t, 10, unchanged.TotalPages)
}

func TestTracker_PatchBookKeepsMissingFields(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "Old", Author: "Someone", TotalPages: 100})
	require.NoError(t, err)
	_, err = tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 40})
	require.NoError(t, err)

	title := "  New  "
	total := 120
	patched, err := tr.PatchBook(ctx, book.ID, BookPatch{Title: &title, TotalPages: &total})
	require.NoError(t, err)
	assert.Equal(t, "New", patched.Title)
	assert.Equal(t, "Someone", patched.Author)
	assert.Equal(t, 120, patched.TotalPages)
	assert.Equal(t, 40, patched.CurrentPages)

	zero := 0
	_, err = tr.PatchBook(ctx, book.ID, BookPatch{TotalPages: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = tr.PatchBook(ctx, "missing", BookPatch{Title: &title})
	assert.ErrorIs(t, err, ErrBookNotFound)

	current, _ := tr.Book(book.ID)
	assert.Equal(t, patched, current)
}

func TestTracker_DeleteBookCascades(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	keep, err := tr.AddBook(ctx, BookInput{Title: "Keep", TotalPages: 100})
	require.NoError(t, err)
	drop, err := tr.AddBook(ctx, BookInput{Title: "Drop", TotalPages: 100})
	require.NoError(t, err)

	_, _ = tr.AddReadingSession(ctx, SessionInput{BookID: drop.ID, Pages: 10})
	_, _ = tr.AddReadingSession(ctx, SessionInput{BookID: keep.ID, Pages: 20})
	_, _ = tr.AddReadingSession(ctx, SessionInput{BookID: drop.ID, Pages: 30})

	require.NoError(t, tr.DeleteBook(ctx, drop.ID))

	state := tr.Snapshot()
	require.Len(t, state.Books, 1)
	assert.Equal(t, keep.ID, state.Books[0].ID)
	for _, r := range state.Readings {
		assert.NotEqual(t, drop.ID, r.BookID)
	}
	assert.Len(t, state.Readings, 1)

	assert.ErrorIs(t, tr.DeleteBook(ctx, drop.ID), ErrBookNotFound)
}

func TestTracker_DeleteBookReevaluates(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 100})
	require.NoError(t, err)
	_, err = tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 100})
	require.NoError(t, err)
	require.Contains(t, tr.Snapshot().Achievements, "read-100")

	require.NoError(t, tr.DeleteBook(ctx, book.ID))

	assert.Empty(t, tr.Snapshot().Achievements, "achievements are recomputed, not locked in")
}

func TestTracker_SetDailyGoal(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.SetDailyGoal(ctx, 20))
	_, err := tr.AddReadingSession(ctx, SessionInput{BookID: "b", Pages: 25})
	require.NoError(t, err)

	stats := tr.Stats()
	assert.Equal(t, 25, stats.TodayPages)
	assert.Equal(t, 100, stats.GoalProgress)

	assert.ErrorIs(t, tr.SetDailyGoal(ctx, 0), ErrInvalidInput)
	assert.ErrorIs(t, tr.SetDailyGoal(ctx, -4), ErrInvalidInput)
	assert.Equal(t, 20, tr.Snapshot().DailyGoal)

	require.NoError(t, tr.SetDailyGoal(ctx, 40))
	assert.Equal(t, 40, tr.Snapshot().DailyGoal)
}

func TestTracker_ResetAll(t *testing.T) {
	tr, db, _ := newTestTracker(t)
	ctx := context.Background()

	book, _ := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 10})
	_, _ = tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 10})
	_ = tr.SetDailyGoal(ctx, 99)

	require.NoError(t, tr.ResetAll(ctx))
	assert.Equal(t, models.DefaultState(), tr.Snapshot())
	assert.Empty(t, db.Keys())

	// A fresh tracker over the same backend sees the reset state
	reloaded := New(NewStore(db, zap.NewNop()), zap.NewNop(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, models.DefaultState(), reloaded.Snapshot())
}

func TestTracker_FailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	db := &flakyStorage{MockDB: stubs.NewMockDB()}
	clock := &fakeClock{now: testNow}
	tr := New(NewStore(db, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, tr.Load(ctx))

	book, err := tr.AddBook(ctx, BookInput{Title: "Kept", TotalPages: 100})
	require.NoError(t, err)
	before := tr.Snapshot()
	persisted, err := db.Get(ctx, StateKey)
	require.NoError(t, err)

	db.err = errors.New("disk full")

	_, err = tr.AddBook(ctx, BookInput{Title: "Lost", TotalPages: 10})
	assert.ErrorIs(t, err, db.err)
	assert.Equal(t, before, tr.Snapshot())

	_, err = tr.EditBook(ctx, book.ID, BookInput{Title: "Renamed", TotalPages: 100})
	assert.ErrorIs(t, err, db.err)
	assert.Equal(t, before, tr.Snapshot())

	_, err = tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 100})
	assert.ErrorIs(t, err, db.err)
	assert.Equal(t, before, tr.Snapshot())

	assert.ErrorIs(t, tr.SetDailyGoal(ctx, 50), db.err)
	assert.ErrorIs(t, tr.DeleteBook(ctx, book.ID), db.err)
	assert.ErrorIs(t, tr.ResetAll(ctx), db.err)
	assert.Equal(t, before, tr.Snapshot())

	after, err := db.Get(ctx, StateKey)
	require.NoError(t, err)
	assert.Equal(t, persisted, after)

	// Once the backend recovers the next mutation persists normally
	db.err = nil
	_, err = tr.AddBook(ctx, BookInput{Title: "Second", TotalPages: 10})
	require.NoError(t, err)

	reloaded := New(NewStore(db, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, tr.Snapshot(), reloaded.Snapshot())
	assert.Len(t, reloaded.Snapshot().Books, 2)
}

func TestTracker_ReevaluateRetriesAfterFailedSave(t *testing.T) {
	ctx := context.Background()
	db := &flakyStorage{MockDB: stubs.NewMockDB()}
	clock := &fakeClock{now: testNow}
	tr := New(NewStore(db, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, tr.Load(ctx))

	for d := 6; d >= 0; d-- {
		clock.now = testNow.AddDate(0, 0, -d)
		_, err := tr.AddReadingSession(ctx, SessionInput{BookID: "b", Pages: 1})
		require.NoError(t, err)
	}
	require.Contains(t, tr.Snapshot().Achievements, "streak-7")

	clock.now = testNow.AddDate(0, 0, 2)
	db.err = errors.New("disk full")
	assert.Error(t, tr.Reevaluate(ctx))
	assert.Contains(t, tr.Snapshot().Achievements, "streak-7")

	db.err = nil
	require.NoError(t, tr.Reevaluate(ctx))
	assert.NotContains(t, tr.Snapshot().Achievements, "streak-7")

	reloaded := New(NewStore(db, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, reloaded.Load(ctx))
	assert.NotContains(t, reloaded.Snapshot().Achievements, "streak-7")
}

func TestTracker_SevenDayStreakScenario(t *testing.T) {
	tr, _, clock := newTestTracker(t)
	ctx := context.Background()

	book, err := tr.AddBook(ctx, BookInput{Title: "Long", TotalPages: 1000})
	require.NoError(t, err)

	for d := 6; d >= 0; d-- {
		clock.now = testNow.AddDate(0, 0, -d)
		_, err := tr.AddReadingSession(ctx, SessionInput{BookID: book.ID, Pages: 5})
		require.NoError(t, err)
	}
	clock.now = testNow

	assert.Equal(t, 7, tr.Stats().Streak)
	achievements := tr.Snapshot().Achievements
	assert.Contains(t, achievements, "streak-7")
	assert.NotContains(t, achievements, "streak-30")
}

func TestTracker_ReevaluateCatchesDateRollover(t *testing.T) {
	tr, db, clock := newTestTracker(t)
	ctx := context.Background()

	for d := 6; d >= 0; d-- {
		clock.now = testNow.AddDate(0, 0, -d)
		_, err := tr.AddReadingSession(ctx, SessionInput{BookID: "b", Pages: 1})
		require.NoError(t, err)
	}
	require.Contains(t, tr.Snapshot().Achievements, "streak-7")

	// Two days later without reading the streak is broken
	clock.now = testNow.AddDate(0, 0, 2)
	writes := db.Writes()
	require.NoError(t, tr.Reevaluate(ctx))

	assert.NotContains(t, tr.Snapshot().Achievements, "streak-7")
	assert.Equal(t, writes+1, db.Writes())

	// Nothing changed: no write
	require.NoError(t, tr.Reevaluate(ctx))
	assert.Equal(t, writes+1, db.Writes())
}

func TestTracker_RunTimerStopsOnCancel(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.RunTimer(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop after cancel")
	}
}

func TestTracker_Achievements(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		_, err := tr.AddBook(ctx, BookInput{Title: title, TotalPages: 10})
		require.NoError(t, err)
	}

	statuses := tr.Achievements()
	require.Len(t, statuses, len(Rules))
	for i, s := range statuses {
		assert.Equal(t, Rules[i].ID, s.ID)
		assert.Equal(t, s.ID == "three-books", s.Unlocked, s.ID)
	}
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.AddBook(ctx, BookInput{Title: "A", TotalPages: 10})
	require.NoError(t, err)

	snap := tr.Snapshot()
	snap.Books[0].Title = "mutated"
	snap.DailyGoal = 1

	fresh := tr.Snapshot()
	assert.Equal(t, "A", fresh.Books[0].Title)
	assert.Equal(t, models.DefaultDailyGoal, fresh.DailyGoal)
}
