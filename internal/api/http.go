package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"readingflow/internal/models"
	"readingflow/internal/tracker"
)

// maxBodyBytes caps the size of a JSON request body
const maxBodyBytes = 1 << 20

// HTTPServer exposes the tracker as a JSON API
type HTTPServer struct {
	tracker *tracker.Tracker
	logger  *zap.Logger
}

// NewHTTPServer creates the API server
func NewHTTPServer(t *tracker.Tracker, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		tracker: t,
		logger:  logger,
	}
}

// RegisterRoutes registers API routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", hs.handleState)
	mux.HandleFunc("/api/stats", hs.handleStats)
	mux.HandleFunc("/api/achievements", hs.handleAchievements)
	mux.HandleFunc("/api/books", hs.handleBooks)
	mux.HandleFunc("/api/books/{id}", hs.handleBook)
	mux.HandleFunc("/api/sessions", hs.handleSessions)
	mux.HandleFunc("/api/goal", hs.handleGoal)
	mux.HandleFunc("/api/reset", hs.handleReset)

	// Keep unknown API paths away from the offline shell
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "Not found", http.StatusNotFound)
	})
}

// BookView is a book with its completion percentage
type BookView struct {
	models.Book
	CompletionPercentage int `json:"completionPercentage"`
}

// SessionView is a reading session with the title of its book
type SessionView struct {
	models.ReadingSession
	BookTitle string `json:"bookTitle"`
}

// GoalRequest represents the request body for changing the daily goal
type GoalRequest struct {
	DailyGoal int `json:"dailyGoal"`
}

func (hs *HTTPServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, hs.tracker.Snapshot())
}

func (hs *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, hs.tracker.Stats())
}

func (hs *HTTPServer) handleAchievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, hs.tracker.Achievements())
}

// handleBooks lists books or adds one
func (hs *HTTPServer) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		state := hs.tracker.Snapshot()
		views := make([]BookView, 0, len(state.Books))
		for _, b := range state.Books {
			views = append(views, BookView{Book: b, CompletionPercentage: tracker.CompletionPercentage(b)})
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var input tracker.BookInput
		if !hs.decodeJSON(w, r, &input) {
			return
		}

		book, err := hs.tracker.AddBook(r.Context(), input)
		if err != nil {
			hs.writeTrackerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, BookView{Book: book, CompletionPercentage: tracker.CompletionPercentage(book)})

	default:
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBook edits or deletes a single book
func (hs *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		book, ok := hs.tracker.Book(id)
		if !ok {
			writeJSONError(w, "Book not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, BookView{Book: book, CompletionPercentage: tracker.CompletionPercentage(book)})

	case http.MethodPut:
		// Fields missing from the body keep their current values
		var patch tracker.BookPatch
		if !hs.decodeJSON(w, r, &patch) {
			return
		}

		book, err := hs.tracker.PatchBook(r.Context(), id, patch)
		if err != nil {
			hs.writeTrackerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, BookView{Book: book, CompletionPercentage: tracker.CompletionPercentage(book)})

	case http.MethodDelete:
		if !confirmed(r) {
			writeJSONError(w, "Deleting a book removes its reading history; repeat with confirm=true", http.StatusConflict)
			return
		}
		if err := hs.tracker.DeleteBook(r.Context(), id); err != nil {
			hs.writeTrackerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessions lists reading sessions or records one
func (hs *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		state := hs.tracker.Snapshot()
		titles := make(map[string]string, len(state.Books))
		for _, b := range state.Books {
			titles[b.ID] = b.Title
		}

		views := make([]SessionView, 0, len(state.Readings))
		for _, s := range state.Readings {
			title, ok := titles[s.BookID]
			if !ok {
				title = tracker.UnknownBookTitle
			}
			views = append(views, SessionView{ReadingSession: s, BookTitle: title})
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var input tracker.SessionInput
		if !hs.decodeJSON(w, r, &input) {
			return
		}

		session, err := hs.tracker.AddReadingSession(r.Context(), input)
		if err != nil {
			hs.writeTrackerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, SessionView{ReadingSession: session, BookTitle: hs.tracker.BookTitle(session.BookID)})

	default:
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (hs *HTTPServer) handleGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GoalRequest
	if !hs.decodeJSON(w, r, &req) {
		return
	}

	if err := hs.tracker.SetDailyGoal(r.Context(), req.DailyGoal); err != nil {
		hs.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs.tracker.Stats())
}

func (hs *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !confirmed(r) {
		writeJSONError(w, "Reset deletes all data; repeat with confirm=true", http.StatusConflict)
		return
	}

	if err := hs.tracker.ResetAll(r.Context()); err != nil {
		hs.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs.tracker.Snapshot())
}

// writeTrackerError maps tracker errors to status codes
func (hs *HTTPServer) writeTrackerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracker.ErrInvalidInput):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tracker.ErrBookNotFound):
		writeJSONError(w, "Book not found", http.StatusNotFound)
	default:
		hs.logger.Error("Tracker operation failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a size-capped JSON body into v. On failure it writes the
// error response and returns false.
func (hs *HTTPServer) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		hs.logger.Warn("Request body too large", zap.Int64("limit", tooLarge.Limit), zap.String("path", r.URL.Path))
		writeJSONError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}

	hs.logger.Warn("Failed to decode request body", zap.Error(err))
	writeJSONError(w, "Invalid request body", http.StatusBadRequest)
	return false
}

func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
