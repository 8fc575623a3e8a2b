package aip

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"agent-chatter/internal/config"
)

// Factory builds agent clients lazily and keeps one per variant for the
// life of the process. Construction can hit the network (OAuth sign-in),
// so a failed construction is remembered too and not retried.
type Factory struct {
	cfg  *config.Config
	base *http.Client

	mu      sync.Mutex
	entries map[Variant]*factoryEntry

	construct func(ctx context.Context, v Variant) (Client, error)
}

type factoryEntry struct {
	once   sync.Once
	client Client
	err    error
}

// NewFactory returns a factory for cfg. base, when non-nil, carries all
// outgoing requests including token fetches.
func NewFactory(cfg *config.Config, base *http.Client) *Factory {
	f := &Factory{
		cfg:     cfg,
		base:    base,
		entries: make(map[Variant]*factoryEntry),
	}
	f.construct = f.build
	return f
}

// Variant is the variant selected by the configuration.
func (f *Factory) Variant() Variant { return VariantFor(f.cfg) }

// Default returns the client for the configured variant.
func (f *Factory) Default(ctx context.Context) (Client, error) {
	return f.Client(ctx, f.Variant())
}

func (f *Factory) Client(ctx context.Context, v Variant) (Client, error) {
	f.mu.Lock()
	e, ok := f.entries[v]
	if !ok {
		e = &factoryEntry{}
		f.entries[v] = e
	}
	f.mu.Unlock()

	e.once.Do(func() {
		e.client, e.err = f.construct(ctx, v)
	})
	return e.client, e.err
}

func (f *Factory) build(ctx context.Context, v Variant) (Client, error) {
	switch v {
	case VariantToken, VariantOAuth:
		creds, err := ResolveCredentials(f.cfg, v)
		if err != nil {
			return nil, err
		}
		ts, err := creds.TokenSource(ctx, f.base)
		if err != nil {
			return nil, err
		}
		log.Printf("[aip] client ready: %s", creds)
		return NewFoundryClient(creds.Hostname, ts, WithHTTPClient(f.base), WithTimeout(f.cfg.RequestTimeout)), nil
	case VariantOpenAI:
		if err := f.cfg.RequireOpenAI(); err != nil {
			return nil, err
		}
		log.Printf("[aip] local openai backend ready: model=%s", f.cfg.OpenAIModel)
		return NewOpenAI(f.cfg.OpenAIAPIKey, f.cfg.OpenAIBaseURL, f.cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown client variant: %s", v)
	}
}
