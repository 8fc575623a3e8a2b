package aip

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-chatter/internal/config"
)

func TestFactoryReturnsCachedInstance(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendFoundry, AuthMode: config.AuthToken, Hostname: "h", BearerToken: "t"}
	f := NewFactory(cfg, nil)

	first, err := f.Default(context.Background())
	require.NoError(t, err)
	second, err := f.Client(context.Background(), VariantToken)
	require.NoError(t, err)
	assert.Same(t, first.(*FoundryClient), second.(*FoundryClient))
}

func TestFactoryConstructsOncePerVariant(t *testing.T) {
	f := NewFactory(&config.Config{}, nil)
	var mu sync.Mutex
	built := map[Variant]int{}
	f.construct = func(_ context.Context, v Variant) (Client, error) {
		mu.Lock()
		built[v]++
		mu.Unlock()
		return &FoundryClient{baseURL: string(v)}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := VariantToken
			if i%2 == 0 {
				v = VariantOAuth
			}
			_, err := f.Client(context.Background(), v)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, map[Variant]int{VariantToken: 1, VariantOAuth: 1}, built)

	tok, _ := f.Client(context.Background(), VariantToken)
	oa, _ := f.Client(context.Background(), VariantOAuth)
	assert.NotSame(t, tok.(*FoundryClient), oa.(*FoundryClient))
}

func TestFactoryRemembersFailure(t *testing.T) {
	f := NewFactory(&config.Config{Backend: config.BackendFoundry, AuthMode: config.AuthToken}, nil)
	_, err := f.Default(context.Background())
	var me *config.MissingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, []string{"BEARER_TOKEN", "HOSTNAME"}, me.Missing)

	calls := 0
	f.construct = func(context.Context, Variant) (Client, error) {
		calls++
		return nil, nil
	}
	_, err = f.Default(context.Background())
	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestFactoryOpenAIVariant(t *testing.T) {
	f := NewFactory(&config.Config{Backend: config.BackendOpenAI, OpenAIAPIKey: "k", OpenAIModel: "m"}, nil)
	c, err := f.Default(context.Background())
	require.NoError(t, err)
	_, ok := c.(*OpenAIClient)
	assert.True(t, ok)
}
