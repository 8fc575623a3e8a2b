package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"agent-chatter/internal/access"
	"agent-chatter/internal/app"
	"agent-chatter/internal/config"
	"agent-chatter/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var allowRepo access.Repository
	if cfg.AllowlistFilePath != "" {
		repo, err := access.NewFileRepository(cfg.AllowlistFilePath)
		if err != nil {
			log.Printf("failed to init allowlist repo: %v", err)
		} else {
			allowRepo = repo
		}
	}
	var pendingRepo access.Repository
	if cfg.PendingFilePath != "" {
		repo, err := access.NewFileRepository(cfg.PendingFilePath)
		if err != nil {
			log.Printf("failed to init pending repo: %v", err)
		} else {
			pendingRepo = repo
		}
	}
	accessSvc, err := access.New(allowRepo, pendingRepo, cfg.AllowedUsers, cfg.AdminUserID)
	if err != nil {
		log.Fatalf("failed to init access: %v", err)
	}

	rt, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	rt.Start()
	defer rt.Stop()

	bot, err := telegram.New(cfg.TelegramBotToken, accessSvc, rt.Registry, rt.Dispatcher)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}
	bot.Start(ctx)
}
