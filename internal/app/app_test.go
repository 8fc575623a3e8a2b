package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-chatter/internal/config"
)

func TestNewWithLocalBackend(t *testing.T) {
	cfg := &config.Config{
		Backend:        config.BackendOpenAI,
		OpenAIAPIKey:   "k",
		OpenAIModel:    "gpt-4o-mini",
		AgentRID:       "ri.agent",
		LogFilePath:    filepath.Join(t.TempDir(), "turns.jsonl"),
		SessionIdleTTL: time.Hour,
		SweepSchedule:  "@every 10m",
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Recorder)

	conv := a.Registry.Get("test")
	assert.Equal(t, "ri.agent", conv.AgentRID())

	a.Start()
	assert.True(t, a.started)
	a.Start()
	a.Stop()
	assert.False(t, a.started)
	a.Stop()
}

func TestStartWithoutJobsIsNoop(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendOpenAI, OpenAIAPIKey: "k"}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	a.Start()
	assert.False(t, a.started)
	a.Stop()
}

func TestNewFailsFastOnMissingCredentials(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendFoundry, AuthMode: config.AuthToken}
	_, err := New(context.Background(), cfg)

	var missing *config.MissingError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, []string{"BEARER_TOKEN", "HOSTNAME"}, missing.Missing)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := &config.Config{
		Backend:        config.BackendOpenAI,
		OpenAIAPIKey:   "k",
		SessionIdleTTL: time.Hour,
		SweepSchedule:  "not a schedule",
	}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
