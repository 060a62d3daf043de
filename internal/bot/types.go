package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingflow/internal/tracker"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	tracker      *tracker.Tracker
	allowedUsers map[int64]bool
	states       map[int64]*ConversationState
	statesMu     sync.RWMutex
	// updateMu serialises HandleUpdate; conversation steps are not
	// safe to advance from two updates at once
	updateMu sync.Mutex
	logger   *zap.Logger
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}

// stepDone marks a finished conversation
const stepDone = -1

func (b *Bot) getState(userID int64) (*ConversationState, bool) {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	state, ok := b.states[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}
