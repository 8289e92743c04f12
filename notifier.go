package main

import (
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends a short report after a comment is posted.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *Logger
}

// NewTelegramNotifier connects to the Bot API. endpoint is a Bot API URL
// format such as tgbotapi.APIEndpoint; empty selects the default.
func NewTelegramNotifier(token string, chatID int64, endpoint string, httpClient *http.Client, logger *Logger) (*TelegramNotifier, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = GetLogger()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (n *TelegramNotifier) NotifyPosted(pc PipelineContext) error {
	msg := tgbotapi.NewMessage(n.chatID, formatPostedMessage(pc))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending Telegram message: %w", err)
	}
	n.logger.Debug("Telegram notification sent to chat %d", n.chatID)
	return nil
}

func formatPostedMessage(pc PipelineContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 *Issue analyzed* %s\n", escapeMarkdown(fmt.Sprintf("%s/%s#%d", pc.Owner, pc.Repo, pc.Request.IssueNumber)))
	fmt.Fprintf(&b, "Type: %s, priority: %s\n", escapeMarkdown(string(pc.Classification.Type)), escapeMarkdown(string(pc.Classification.Priority)))
	if len(pc.Classification.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", escapeMarkdown(strings.Join(pc.Classification.Topics, ", ")))
	}
	fmt.Fprintf(&b, "Method: %s\n", escapeMarkdown(string(pc.Method)))
	if pc.Posted != nil && pc.Posted.URL != "" {
		b.WriteString(escapeMarkdown(pc.Posted.URL))
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
