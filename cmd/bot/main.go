package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"phonecheck/internal/app"
	"phonecheck/internal/chat"
	"phonecheck/internal/platform/config"
	"phonecheck/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./phonecheck.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bot exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token (TELEGRAM_BOT_TOKEN) is required")
	}

	a, err := app.Build(ctx, cfg, log, app.WithoutOTP())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to close resources", "error", err)
		}
	}()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	bot := chat.NewBot(botAPI, a.Pipeline, a.Recorder, log)
	return chat.Run(ctx, botAPI, bot, cfg.Telegram.PollTimeout)
}
