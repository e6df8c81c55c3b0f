package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFactory(t *testing.T) {
	factory := &ProviderFactory{}

	t.Run("should create anthropic provider", func(t *testing.T) {
		provider, err := factory.NewProvider(AuthProfile{Provider: "anthropic", APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, "anthropic", provider.Provider())
	})

	t.Run("should create openai provider", func(t *testing.T) {
		provider, err := factory.NewProvider(AuthProfile{Provider: "openai", APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, "openai", provider.Provider())
	})

	t.Run("should create openai provider with base url override", func(t *testing.T) {
		provider, err := factory.NewProvider(AuthProfile{
			Provider: "openai",
			APIKey:   "k",
			BaseURL:  "http://localhost:8080/v1",
		})
		require.NoError(t, err)
		assert.Equal(t, "openai", provider.Provider())
	})

	t.Run("should reject unknown provider", func(t *testing.T) {
		_, err := factory.NewProvider(AuthProfile{Provider: "carrier-pigeon"})
		assert.Error(t, err)
	})
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(errors.New("invalid api key")))

	assert.True(t, IsRetryableError(errors.New("429 Too Many Requests")))
	assert.True(t, IsRetryableError(errors.New("rate limit exceeded")))
	assert.True(t, IsRetryableError(errors.New("upstream returned 503")))
	assert.True(t, IsRetryableError(errors.New("read tcp: ECONNRESET")))
}
