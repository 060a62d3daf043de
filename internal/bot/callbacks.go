package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleBookCallback processes book selection for a reading session
func (b *Bot) handleBookCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *ConversationState) {
	if state.Command != "read" || state.Step != 1 {
		return
	}

	chatID := query.Message.Chat.ID
	bookID := strings.TrimPrefix(query.Data, "book:")

	book, ok := b.tracker.Book(bookID)
	if !ok {
		b.sendText(chatID, "Error: Invalid book selection")
		state.Step = stepDone
		return
	}

	state.Data["book_id"] = book.ID
	state.Step = 2
	b.sendText(chatID, fmt.Sprintf("📖 %s\nHow many pages did you read?", book.Title))
}

// handleDeleteCallback processes book selection for deletion and asks for confirmation
func (b *Bot) handleDeleteCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *ConversationState) {
	if state.Command != "delete_book" || state.Step != 1 {
		return
	}

	chatID := query.Message.Chat.ID
	bookID := strings.TrimPrefix(query.Data, "delete:")

	book, ok := b.tracker.Book(bookID)
	if !ok {
		b.sendText(chatID, "Error: Invalid book selection")
		state.Step = stepDone
		return
	}

	state.Data["book_id"] = book.ID
	state.Step = 2

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("⚠️ Delete \"%s\" and all of its reading sessions?", book.Title))
	msg.ReplyMarkup = confirmKeyboard()
	b.sendMessage(msg)
}

// handleConfirmCallback finishes a delete or reset once the user answers
func (b *Bot) handleConfirmCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *ConversationState) {
	chatID := query.Message.Chat.ID
	answer := strings.TrimPrefix(query.Data, "confirm:")

	switch {
	case state.Command == "delete_book" && state.Step == 2:
	case state.Command == "reset" && state.Step == 1:
	default:
		return
	}

	state.Step = stepDone
	if answer != "yes" {
		b.sendText(chatID, "Cancelled.")
		return
	}

	if state.Command == "reset" {
		if err := b.tracker.ResetAll(ctx); err != nil {
			b.logger.Error("Failed to reset from bot", zap.Error(err), zap.Int64("user_id", query.From.ID))
			b.sendText(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.sendText(chatID, "All data deleted.")
		return
	}

	bookID := state.Data["book_id"].(string)
	title := b.tracker.BookTitle(bookID)
	if err := b.tracker.DeleteBook(ctx, bookID); err != nil {
		b.logger.Error("Failed to delete book from bot",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID),
			zap.String("book_id", bookID),
		)
		b.sendText(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("\"%s\" deleted.", title))
}
