package tracker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"readingflow/internal/metrics"
	"readingflow/internal/models"
)

// UnknownBookTitle is shown for sessions whose book was deleted
const UnknownBookTitle = "Unknown book"

var (
	// ErrInvalidInput wraps every validation failure
	ErrInvalidInput = errors.New("invalid input")

	// ErrBookNotFound is returned when an operation names a missing book
	ErrBookNotFound = errors.New("book not found")
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
}

// BookInput carries the editable fields of a book
type BookInput struct {
	Title        string `json:"title" validate:"required"`
	Author       string `json:"author"`
	Genre        string `json:"genre"`
	TotalPages   int    `json:"totalPages" validate:"gt=0"`
	CurrentPages int    `json:"currentPages" validate:"gte=0"`
}

// BookPatch carries a partial book edit. Nil fields are left unchanged.
type BookPatch struct {
	Title        *string `json:"title"`
	Author       *string `json:"author"`
	Genre        *string `json:"genre"`
	TotalPages   *int    `json:"totalPages"`
	CurrentPages *int    `json:"currentPages"`
}

// Apply overlays the present fields on book
func (p BookPatch) Apply(book models.Book) BookInput {
	input := BookInput{
		Title:        book.Title,
		Author:       book.Author,
		Genre:        book.Genre,
		TotalPages:   book.TotalPages,
		CurrentPages: book.CurrentPages,
	}
	if p.Title != nil {
		input.Title = *p.Title
	}
	if p.Author != nil {
		input.Author = *p.Author
	}
	if p.Genre != nil {
		input.Genre = *p.Genre
	}
	if p.TotalPages != nil {
		input.TotalPages = *p.TotalPages
	}
	if p.CurrentPages != nil {
		input.CurrentPages = *p.CurrentPages
	}
	return input
}

// SessionInput carries the fields of a new reading session
type SessionInput struct {
	BookID    string `json:"bookId" validate:"required"`
	Pages     int    `json:"pages" validate:"gt=0"`
	TimeSpent int    `json:"time" validate:"gte=0"`
	Notes     string `json:"notes"`
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// Tracker is the single controller over the reading state. Every mutation
// validates, changes the state, re-evaluates achievements and persists, all
// under one lock.
type Tracker struct {
	mu            sync.Mutex
	store         *Store
	logger        *zap.Logger
	clock         func() time.Time
	lastSessionID int64
}

// New creates a tracker over store
func New(store *Store, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load restores persisted state and re-evaluates achievements against it
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Load(ctx); err != nil {
		return err
	}

	t.lastSessionID = 0
	for _, r := range t.store.State().Readings {
		if r.ID > t.lastSessionID {
			t.lastSessionID = r.ID
		}
	}

	return t.commit(ctx, "load", t.store.State().Clone())
}

// AddBook validates input and appends a new book
func (t *Tracker) AddBook(ctx context.Context, input BookInput) (models.Book, error) {
	input = trimBookInput(input)
	if err := validateInput(input); err != nil {
		metrics.MutationsTotal.WithLabelValues("add_book", "invalid").Inc()
		return models.Book{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	book := models.Book{
		ID:           uuid.NewString(),
		Title:        input.Title,
		Author:       input.Author,
		Genre:        input.Genre,
		TotalPages:   input.TotalPages,
		CurrentPages: min(input.CurrentPages, input.TotalPages),
	}

	prev := t.store.State().Clone()
	state := t.store.State()
	state.Books = append(state.Books, book)

	t.logger.Info("Book added",
		zap.String("book_id", book.ID),
		zap.String("title", book.Title),
		zap.Int("total_pages", book.TotalPages),
	)

	if err := t.commit(ctx, "add_book", prev); err != nil {
		return models.Book{}, err
	}
	return book, nil
}

// EditBook updates a book in place, keeping its id and reading history
func (t *Tracker) EditBook(ctx context.Context, id string, input BookInput) (models.Book, error) {
	input = trimBookInput(input)
	if err := validateInput(input); err != nil {
		metrics.MutationsTotal.WithLabelValues("edit_book", "invalid").Inc()
		return models.Book{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.editLocked(ctx, id, input)
}

// PatchBook edits only the fields present in patch; the rest keep their
// current values
func (t *Tracker) PatchBook(ctx context.Context, id string, patch BookPatch) (models.Book, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.store.State()
	idx := indexOfBook(state, id)
	if idx < 0 {
		metrics.MutationsTotal.WithLabelValues("edit_book", "not_found").Inc()
		return models.Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}

	input := trimBookInput(patch.Apply(state.Books[idx]))
	if err := validateInput(input); err != nil {
		metrics.MutationsTotal.WithLabelValues("edit_book", "invalid").Inc()
		return models.Book{}, err
	}

	return t.editLocked(ctx, id, input)
}

func (t *Tracker) editLocked(ctx context.Context, id string, input BookInput) (models.Book, error) {
	state := t.store.State()
	idx := indexOfBook(state, id)
	if idx < 0 {
		metrics.MutationsTotal.WithLabelValues("edit_book", "not_found").Inc()
		return models.Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}

	prev := state.Clone()
	book := &state.Books[idx]
	book.Title = input.Title
	book.Author = input.Author
	book.Genre = input.Genre
	book.TotalPages = input.TotalPages
	book.CurrentPages = min(input.CurrentPages, input.TotalPages)

	t.logger.Info("Book edited", zap.String("book_id", id), zap.String("title", book.Title))

	edited := *book
	if err := t.commit(ctx, "edit_book", prev); err != nil {
		return models.Book{}, err
	}
	return edited, nil
}

// DeleteBook removes a book and every session that references it.
// Asking the reader for confirmation is the caller's job.
func (t *Tracker) DeleteBook(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.store.State()
	idx := indexOfBook(state, id)
	if idx < 0 {
		metrics.MutationsTotal.WithLabelValues("delete_book", "not_found").Inc()
		return fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}

	prev := state.Clone()
	state.Books = append(state.Books[:idx], state.Books[idx+1:]...)

	kept := state.Readings[:0]
	removed := 0
	for _, r := range state.Readings {
		if r.BookID == id {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	state.Readings = kept

	t.logger.Info("Book deleted", zap.String("book_id", id), zap.Int("sessions_removed", removed))

	return t.commit(ctx, "delete_book", prev)
}

// AddReadingSession records pages read. The referenced book, if it still
// exists, advances by the pages read without passing its last page.
func (t *Tracker) AddReadingSession(ctx context.Context, input SessionInput) (models.ReadingSession, error) {
	input.BookID = strings.TrimSpace(input.BookID)
	if err := validateInput(input); err != nil {
		metrics.MutationsTotal.WithLabelValues("add_session", "invalid").Inc()
		return models.ReadingSession{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	id := now.UnixMilli()
	if id <= t.lastSessionID {
		id = t.lastSessionID + 1
	}
	t.lastSessionID = id

	session := models.ReadingSession{
		ID:        id,
		BookID:    input.BookID,
		Pages:     input.Pages,
		TimeSpent: input.TimeSpent,
		Notes:     input.Notes,
		Date:      now,
	}

	prev := t.store.State().Clone()
	state := t.store.State()
	state.Readings = append(state.Readings, session)

	if idx := indexOfBook(state, input.BookID); idx >= 0 {
		book := &state.Books[idx]
		book.CurrentPages = min(book.CurrentPages+input.Pages, book.TotalPages)
	} else {
		t.logger.Warn("Reading session references unknown book", zap.String("book_id", input.BookID))
	}

	t.logger.Info("Reading session recorded",
		zap.Int64("session_id", id),
		zap.String("book_id", input.BookID),
		zap.Int("pages", input.Pages),
	)

	if err := t.commit(ctx, "add_session", prev); err != nil {
		return models.ReadingSession{}, err
	}
	return session, nil
}

// SetDailyGoal changes the daily page goal
func (t *Tracker) SetDailyGoal(ctx context.Context, goal int) error {
	if err := validate.Var(goal, "gt=0"); err != nil {
		metrics.MutationsTotal.WithLabelValues("set_goal", "invalid").Inc()
		return fmt.Errorf("%w: dailyGoal must be greater than 0", ErrInvalidInput)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.store.State().Clone()
	t.store.State().DailyGoal = goal
	t.logger.Info("Daily goal updated", zap.Int("daily_goal", goal))

	return t.commit(ctx, "set_goal", prev)
}

// ResetAll wipes every book, session and achievement and restores the
// default goal. The persisted blob is deleted rather than overwritten.
func (t *Tracker) ResetAll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Clear(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues("reset", "error").Inc()
		return err
	}
	t.lastSessionID = 0
	t.logger.Warn("All data reset")

	metrics.MutationsTotal.WithLabelValues("reset", "ok").Inc()
	return nil
}

// Reevaluate recomputes achievements and persists them if they changed.
// It is what the periodic timer calls to catch date rollover.
func (t *Tracker) Reevaluate(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.store.State().Clone()
	if !t.evaluateLocked() {
		return nil
	}
	if err := t.store.Save(ctx); err != nil {
		// Restored so the next tick sees the change again and retries the save
		t.store.Replace(prev)
		return err
	}
	return nil
}

// RunTimer re-evaluates achievements every interval until ctx is done
func (t *Tracker) RunTimer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info("Achievement timer started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Achievement timer stopped")
			return
		case <-ticker.C:
			if err := t.Reevaluate(ctx); err != nil {
				t.logger.Error("Periodic achievement evaluation failed", zap.Error(err))
			}
		}
	}
}

// Snapshot returns a deep copy of the current state
func (t *Tracker) Snapshot() *models.AppState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.State().Clone()
}

// Stats computes the dashboard values for now
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary(t.store.State(), t.clock())
}

// Achievements lists every rule with its unlocked flag, in rule order
func (t *Tracker) Achievements() []models.AchievementStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	unlocked := make(map[string]bool)
	for _, id := range t.store.State().Achievements {
		unlocked[id] = true
	}

	out := make([]models.AchievementStatus, 0, len(Rules))
	for _, rule := range Rules {
		out = append(out, models.AchievementStatus{
			Achievement: rule.Achievement,
			Unlocked:    unlocked[rule.ID],
		})
	}
	return out
}

// Book returns the book with the given id
func (t *Tracker) Book(id string) (models.Book, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.store.State()
	if idx := indexOfBook(state, id); idx >= 0 {
		return state.Books[idx], true
	}
	return models.Book{}, false
}

// Now returns the tracker's current time
func (t *Tracker) Now() time.Time {
	return t.clock()
}

// BookTitle returns the title of a book, or UnknownBookTitle if it is gone
func (t *Tracker) BookTitle(id string) string {
	if book, ok := t.Book(id); ok {
		return book.Title
	}
	return UnknownBookTitle
}

// commit re-evaluates achievements and saves. If the save fails the
// in-memory state is rolled back to prev. Callers hold t.mu.
func (t *Tracker) commit(ctx context.Context, operation string, prev *models.AppState) error {
	t.evaluateLocked()
	if err := t.store.Save(ctx); err != nil {
		t.store.Replace(prev)
		metrics.MutationsTotal.WithLabelValues(operation, "error").Inc()
		return err
	}
	metrics.MutationsTotal.WithLabelValues(operation, "ok").Inc()
	return nil
}

// evaluateLocked replaces the achievement set and reports whether it changed
func (t *Tracker) evaluateLocked() bool {
	state := t.store.State()
	now := t.clock()

	next := Evaluate(state, now)
	gained, lost := diffAchievements(state.Achievements, next)
	state.Achievements = next

	for _, id := range gained {
		t.logger.Info("Achievement unlocked", zap.String("achievement", id))
	}
	for _, id := range lost {
		t.logger.Info("Achievement lost", zap.String("achievement", id))
	}

	metrics.PagesTotal.Set(float64(TotalPages(state)))
	metrics.StreakDays.Set(float64(Streak(state, now)))
	metrics.AchievementsUnlocked.Set(float64(len(next)))

	return len(gained) > 0 || len(lost) > 0
}

func indexOfBook(state *models.AppState, id string) int {
	for i, b := range state.Books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func trimBookInput(input BookInput) BookInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.Genre = strings.TrimSpace(input.Genre)
	return input
}

// validateInput runs struct validation and folds failures into ErrInvalidInput
func validateInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be greater than "+fe.Param())
		case "gte":
			msgs = append(msgs, fe.Field()+" must be at least "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}
