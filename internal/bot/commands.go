package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"readingflow/internal/tracker"
)

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `Welcome to ReadingFlow! 📚

Available commands:
/books - List your books
/new_book - Add a book
/read - Record a reading session
/stats - Streak, daily goal and the last 7 days
/achievements - Show achievements
/goal - Change the daily page goal
/delete_book - Delete a book and its sessions
/reset - Delete all data`

	b.sendText(message.Chat.ID, text)
}

func (b *Bot) handleBooks(message *tgbotapi.Message) {
	b.sendText(message.Chat.ID, formatBooks(b.tracker.Snapshot().Books))
}

// handleNewBookStart initiates the new book conversation
func (b *Bot) handleNewBookStart(message *tgbotapi.Message) {
	b.setState(message.From.ID, &ConversationState{
		Command: "new_book",
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	b.sendText(message.Chat.ID, "Please enter the book title:")
}

// handleReadStart initiates the reading session conversation
func (b *Bot) handleReadStart(message *tgbotapi.Message) {
	books := tracker.ReadableBooks(b.tracker.Snapshot())
	if len(books) == 0 {
		b.sendText(message.Chat.ID, "No books in progress. Please add books first with /new_book")
		return
	}

	b.setState(message.From.ID, &ConversationState{
		Command: "read",
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	msg := tgbotapi.NewMessage(message.Chat.ID, "📚 Select a book:")
	msg.ReplyMarkup = bookKeyboard(books, "book:")
	b.sendMessage(msg)
}

func (b *Bot) handleStats(message *tgbotapi.Message) {
	b.sendText(message.Chat.ID, formatStats(b.tracker.Stats(), b.tracker.Now()))
}

func (b *Bot) handleAchievements(message *tgbotapi.Message) {
	b.sendText(message.Chat.ID, formatAchievements(b.tracker.Achievements()))
}

// handleGoalStart asks for a new daily goal
func (b *Bot) handleGoalStart(message *tgbotapi.Message) {
	b.setState(message.From.ID, &ConversationState{
		Command: "goal",
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	b.sendText(message.Chat.ID, "🎯 How many pages per day?")
}

// handleDeleteBookStart shows the books that can be deleted
func (b *Bot) handleDeleteBookStart(message *tgbotapi.Message) {
	books := b.tracker.Snapshot().Books
	if len(books) == 0 {
		b.sendText(message.Chat.ID, "No books to delete.")
		return
	}

	b.setState(message.From.ID, &ConversationState{
		Command: "delete_book",
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	msg := tgbotapi.NewMessage(message.Chat.ID, "🗑 Select a book to delete:")
	msg.ReplyMarkup = bookKeyboard(books, "delete:")
	b.sendMessage(msg)
}

// handleResetStart asks for confirmation before wiping everything
func (b *Bot) handleResetStart(message *tgbotapi.Message) {
	b.setState(message.From.ID, &ConversationState{
		Command: "reset",
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	msg := tgbotapi.NewMessage(message.Chat.ID, "⚠️ This deletes all books, sessions and achievements. Are you sure?")
	msg.ReplyMarkup = confirmKeyboard()
	b.sendMessage(msg)
}
