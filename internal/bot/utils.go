package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"readingflow/internal/models"
	"readingflow/internal/tracker"
)

// sendMessage sends a prepared message
func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if b.api == nil {
		return // For testing
	}

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID),
		)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// bookKeyboard lays books out two per row, each button carrying prefix+id
func bookKeyboard(books []models.Book, prefix string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	for i, book := range books {
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(book.Title, prefix+book.ID))

		if len(currentRow) == 2 || i == len(books)-1 {
			rows = append(rows, currentRow)
			currentRow = []tgbotapi.InlineKeyboardButton{}
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes", "confirm:yes"),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", "confirm:no"),
		),
	)
}

// formatBooks renders the library with a progress line per book
func formatBooks(books []models.Book) string {
	if len(books) == 0 {
		return "No books yet. Add one with /new_book"
	}

	var text strings.Builder
	text.WriteString("📚 Your books:\n\n")
	for i, book := range books {
		text.WriteString(fmt.Sprintf("%d. %s", i+1, book.Title))
		if book.Author != "" {
			text.WriteString(fmt.Sprintf(" by %s", book.Author))
		}
		text.WriteString(fmt.Sprintf("\n   %d/%d pages (%d%%)", book.CurrentPages, book.TotalPages, tracker.CompletionPercentage(book)))
		if book.Completed() {
			text.WriteString(" ✅")
		}
		text.WriteString("\n")
	}
	return text.String()
}

// formatStats renders the dashboard; days are labelled relative to now
func formatStats(stats tracker.Stats, now time.Time) string {
	var text strings.Builder
	text.WriteString("📊 Reading statistics\n\n")
	text.WriteString(fmt.Sprintf("🔥 Streak: %d days\n", stats.Streak))
	text.WriteString(fmt.Sprintf("📖 Today: %d/%d pages (%d%%)\n", stats.TodayPages, stats.DailyGoal, stats.GoalProgress))
	text.WriteString(fmt.Sprintf("📚 Total pages: %d\n", stats.TotalPages))
	text.WriteString(fmt.Sprintf("✅ Completed books: %d\n", stats.CompletedBooks))

	text.WriteString("\nLast 7 days:\n")
	for i, pages := range stats.LastSevenDays {
		day := now.AddDate(0, 0, i-6)
		text.WriteString(fmt.Sprintf("%s: %d\n", day.Format("Mon 02 Jan"), pages))
	}
	return text.String()
}

func formatAchievements(statuses []models.AchievementStatus) string {
	var text strings.Builder
	text.WriteString("🏆 Achievements\n\n")
	for _, a := range statuses {
		mark := "🔒"
		if a.Unlocked {
			mark = a.Icon
		}
		text.WriteString(fmt.Sprintf("%s %s: %s\n", mark, a.Name, a.Description))
	}
	return text.String()
}
