package chat

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"phonecheck/internal/analytics"
	"phonecheck/internal/phone"
	"phonecheck/internal/verdict"
	"phonecheck/pkg/requestcontext"
)

const historySize = 5

// Analyzer runs the lookup pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, raw string) (*verdict.Verdict, error)
}

// HistoryReader lists recent lookups, newest first.
type HistoryReader interface {
	Recent(n int) []analytics.LookupEvent
}

// Messenger sends replies. *tgbotapi.BotAPI satisfies it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot answers Telegram messages.
type Bot struct {
	messenger Messenger
	analyzer  Analyzer
	history   HistoryReader
	logger    *slog.Logger
}

func NewBot(messenger Messenger, analyzer Analyzer, history HistoryReader, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{messenger: messenger, analyzer: analyzer, history: history, logger: logger}
}

// Run long-polls api for updates until ctx is cancelled.
func Run(ctx context.Context, api *tgbotapi.BotAPI, bot *Bot, pollTimeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)
	bot.logger.Info("telegram bot polling", "username", api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			bot.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate answers one update. Non-message updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	ctx = requestcontext.WithChannel(ctx, "telegram")
	ctx = requestcontext.WithClientKind(ctx, "telegram")
	if msg.From != nil {
		ctx = requestcontext.WithSubject(ctx, "telegram:"+strconv.FormatInt(msg.From.ID, 10))
	}

	var reply string
	if msg.IsCommand() {
		reply = b.handleCommand(msg.Command())
	} else {
		reply = b.handleText(ctx, msg.Text)
	}
	if reply == "" {
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.messenger.Send(out); err != nil {
		b.logger.ErrorContext(ctx, "failed to send telegram reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) handleCommand(cmd string) string {
	switch cmd {
	case "start", "help":
		return StartMessage
	case "history":
		if b.history == nil {
			return EmptyHistory
		}
		return RenderHistory(b.history.Recent(historySize))
	default:
		return "Unknown command. Try /start or /history."
	}
}

func (b *Bot) handleText(ctx context.Context, text string) string {
	candidate, ok := ExtractCandidate(text)
	if !ok {
		return InvalidFormatMessage
	}
	v, err := b.analyzer.Analyze(ctx, candidate)
	switch {
	case errors.Is(err, phone.ErrInvalidFormat):
		return InvalidFormatMessage
	case err != nil:
		b.logger.ErrorContext(ctx, "telegram lookup failed", "number", phone.Mask(candidate), "error", err)
		return FailureMessage
	}
	return Render(verdict.ToView(v))
}
