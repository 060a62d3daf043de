package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.sendText(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID

	// Check if user is in a conversation
	if state, ok := b.getState(userID); ok {
		if state.Step == stepDone || message.IsCommand() {
			// Any command interrupts an ongoing conversation
			b.clearState(userID)
		} else {
			b.handleConversation(ctx, message, state)
			return
		}
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start", "help":
		b.handleStart(message)
	case "books":
		b.handleBooks(message)
	case "new_book":
		b.handleNewBookStart(message)
	case "read":
		b.handleReadStart(message)
	case "stats":
		b.handleStats(message)
	case "achievements":
		b.handleAchievements(message)
	case "goal":
		b.handleGoalStart(message)
	case "delete_book":
		b.handleDeleteBookStart(message)
	case "reset":
		b.handleResetStart(message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	userID := query.From.ID

	// Answer the callback query to remove loading state
	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.logger.Debug("Failed to answer callback query", zap.Error(err))
		}
	}

	state, ok := b.getState(userID)
	if !ok || query.Message == nil {
		return
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, "book:"):
		b.handleBookCallback(ctx, query, state)
	case strings.HasPrefix(data, "delete:"):
		b.handleDeleteCallback(ctx, query, state)
	case strings.HasPrefix(data, "confirm:"):
		b.handleConfirmCallback(ctx, query, state)
	}

	if state.Step == stepDone {
		b.clearState(userID)
	}
}
