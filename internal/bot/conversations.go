package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingflow/internal/tracker"
)

// skipInput leaves an optional field empty
const skipInput = "-"

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Command {
	case "new_book":
		b.handleNewBookConversation(ctx, message, state)
	case "read":
		b.handleReadConversation(ctx, message, state)
	case "goal":
		b.handleGoalConversation(ctx, message, state)
	}

	// Clean up completed conversations
	if state.Step == stepDone {
		b.clearState(message.From.ID)
	}
}

// handleNewBookConversation asks for title, author, genre, total pages and pages read
func (b *Bot) handleNewBookConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch state.Step {
	case 1: // Waiting for title
		if text == "" {
			b.sendText(chatID, "The title cannot be empty. Please enter the book title:")
			return
		}
		state.Data["title"] = text
		state.Step = 2
		b.sendText(chatID, "✍️ Author? Send - to skip")

	case 2: // Waiting for author
		state.Data["author"] = optional(text)
		state.Step = 3
		b.sendText(chatID, "🏷 Genre? Send - to skip")

	case 3: // Waiting for genre
		state.Data["genre"] = optional(text)
		state.Step = 4
		b.sendText(chatID, "📄 How many pages does the book have?")

	case 4: // Waiting for total pages
		total, err := strconv.Atoi(text)
		if err != nil || total <= 0 {
			b.sendText(chatID, "❌ Please enter a positive number of pages:")
			return
		}
		state.Data["total_pages"] = total
		state.Step = 5
		b.sendText(chatID, "📖 How many pages have you already read? Send 0 if none")

	case 5: // Waiting for pages already read
		current, err := strconv.Atoi(text)
		if err != nil || current < 0 {
			b.sendText(chatID, "❌ Please enter 0 or a positive number:")
			return
		}

		book, err := b.tracker.AddBook(ctx, tracker.BookInput{
			Title:        state.Data["title"].(string),
			Author:       state.Data["author"].(string),
			Genre:        state.Data["genre"].(string),
			TotalPages:   state.Data["total_pages"].(int),
			CurrentPages: current,
		})
		if err != nil {
			b.logger.Error("Failed to add book from bot", zap.Error(err), zap.Int64("user_id", message.From.ID))
			b.sendText(chatID, fmt.Sprintf("Error adding book: %v", err))
		} else {
			b.sendText(chatID, fmt.Sprintf("Book added!\n\n%s\n%d/%d pages (%d%%)",
				book.Title, book.CurrentPages, book.TotalPages, tracker.CompletionPercentage(book)))
		}

		state.Step = stepDone
	}
}

// handleReadConversation asks for pages, minutes and notes once a book is selected
func (b *Bot) handleReadConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch state.Step {
	case 1: // Waiting for book selection from the keyboard
		b.sendText(chatID, "Please select a book from the list above.")

	case 2: // Waiting for pages
		pages, err := strconv.Atoi(text)
		if err != nil || pages <= 0 {
			b.sendText(chatID, "❌ Please enter a positive number of pages:")
			return
		}
		state.Data["pages"] = pages
		state.Step = 3
		b.sendText(chatID, "⏱ How many minutes did you read? Send - to skip")

	case 3: // Waiting for minutes
		minutes := 0
		if text != skipInput {
			m, err := strconv.Atoi(text)
			if err != nil || m < 0 {
				b.sendText(chatID, "❌ Please enter minutes as a number, or - to skip:")
				return
			}
			minutes = m
		}
		state.Data["time"] = minutes
		state.Step = 4
		b.sendText(chatID, "📝 Any notes? Send - to skip")

	case 4: // Waiting for notes
		bookID := state.Data["book_id"].(string)
		session, err := b.tracker.AddReadingSession(ctx, tracker.SessionInput{
			BookID:    bookID,
			Pages:     state.Data["pages"].(int),
			TimeSpent: state.Data["time"].(int),
			Notes:     optional(text),
		})
		if err != nil {
			b.logger.Error("Failed to add reading session from bot", zap.Error(err), zap.Int64("user_id", message.From.ID))
			b.sendText(chatID, fmt.Sprintf("Error recording session: %v", err))
		} else {
			stats := b.tracker.Stats()
			b.sendText(chatID, fmt.Sprintf("Reading session recorded!\n\nBook: %s\nPages: %d\nToday: %d/%d pages\nStreak: %d days",
				b.tracker.BookTitle(session.BookID), session.Pages, stats.TodayPages, stats.DailyGoal, stats.Streak))
		}

		state.Step = stepDone
	}
}

// handleGoalConversation sets the daily goal
func (b *Bot) handleGoalConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID

	goal, err := strconv.Atoi(strings.TrimSpace(message.Text))
	if err != nil {
		b.sendText(chatID, "❌ Please enter the goal as a number:")
		return
	}

	if err := b.tracker.SetDailyGoal(ctx, goal); err != nil {
		if errors.Is(err, tracker.ErrInvalidInput) {
			b.sendText(chatID, "❌ The goal must be greater than 0:")
			return
		}
		b.logger.Error("Failed to set daily goal from bot", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendText(chatID, fmt.Sprintf("Error: %v", err))
		state.Step = stepDone
		return
	}

	b.sendText(chatID, fmt.Sprintf("🎯 Daily goal set to %d pages", goal))
	state.Step = stepDone
}

func optional(text string) string {
	if text == skipInput {
		return ""
	}
	return text
}
