package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"agent-chatter/internal/app"
	"agent-chatter/internal/config"
	"agent-chatter/internal/tui"
)

const logPath = "logs/tui.log"

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// log output would tear the alt screen
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		if f, err := tea.LogToFile(logPath, "tui"); err == nil {
			defer f.Close()
		}
	}

	rt.Start()
	defer rt.Stop()

	p := tea.NewProgram(tui.New(ctx, rt.Registry, rt.Dispatcher), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "agent-chatter tui: %v\n", err)
		os.Exit(1)
	}
}
