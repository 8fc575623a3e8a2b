package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"agent-chatter/internal/app"
	"agent-chatter/internal/config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	rt.Start()
	defer rt.Stop()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "agent-chatter-mcp",
		Version: "1.0.0",
	}, nil)
	register(server, newAgentTools(rt.Registry, rt.Dispatcher))

	if cfg.MCPHTTPAddr == "" {
		log.Printf("[mcp] serving ask_agent, reset_conversation on stdin/stdout")
		if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("[mcp] server failed: %v", err)
		}
		return
	}
	serveSSE(ctx, server, cfg.MCPHTTPAddr)
}

func serveSSE(ctx context.Context, server *mcp.Server, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return server }))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 15 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[mcp] http server failed: %v", err)
		}
	}()
	log.Printf("[mcp] SSE server listening on http://%s/mcp", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[mcp] shutdown: %v", err)
	}
}
