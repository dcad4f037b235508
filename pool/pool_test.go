package pool

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDeduplicates(t *testing.T) {
	p := New()
	id1 := p.Add(Config{BaseURL: "https://a.example.com", APIKey: "k1"})
	id2 := p.Add(Config{BaseURL: "https://a.example.com", APIKey: "k1"})
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, p.Len())

	id3 := p.Add(Config{BaseURL: "https://a.example.com", APIKey: "k2"})
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 2, p.Len())
}

func TestConfigIDFieldOrderInsensitive(t *testing.T) {
	a := Config{BaseURL: "https://a.example.com", APIKey: "k", MaxConcurrent: 4}
	b := Config{MaxConcurrent: 4, APIKey: "k", BaseURL: "https://a.example.com"}
	assert.Equal(t, a.ID(), b.ID())
}

func TestRoundRobinCyclesAvailable(t *testing.T) {
	p := New(WithStrategy(StrategyRoundRobin))
	id1 := p.Add(Config{BaseURL: "https://a.example.com"})
	id2 := p.Add(Config{BaseURL: "https://b.example.com"})
	id3 := p.Add(Config{BaseURL: "https://c.example.com"})

	var got []string
	for i := 0; i < 6; i++ {
		h, err := p.Get()
		require.NoError(t, err)
		got = append(got, h.ID)
		h.Release()
	}
	assert.Equal(t, []string{id1, id2, id3, id1, id2, id3}, got)
}

func TestRoundRobinSkipsDisabled(t *testing.T) {
	p := New()
	id1 := p.Add(Config{BaseURL: "https://a.example.com"})
	id2 := p.Add(Config{BaseURL: "https://b.example.com"})
	require.NoError(t, p.Disable(id1))

	for i := 0; i < 3; i++ {
		h, err := p.Get()
		require.NoError(t, err)
		assert.Equal(t, id2, h.ID)
		h.Release()
	}

	require.NoError(t, p.Enable(id1))
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		h, err := p.Get()
		require.NoError(t, err)
		seen[h.ID] = true
		h.Release()
	}
	assert.True(t, seen[id1])
	assert.True(t, seen[id2])
}

func TestGetRespectsConcurrencyCap(t *testing.T) {
	p := New()
	id := p.Add(Config{BaseURL: "https://a.example.com", MaxConcurrent: 2})

	h1, err := p.Get()
	require.NoError(t, err)
	h2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, p.Running(id))

	_, err = p.Get()
	assert.ErrorIs(t, err, ErrNoAvailableProvider)

	h1.Release()
	h3, err := p.Get()
	require.NoError(t, err)

	h2.Release()
	h3.Release()
	assert.Equal(t, 0, p.Running(id))
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := New()
	id := p.Add(Config{BaseURL: "https://a.example.com"})

	h1, err := p.Get()
	require.NoError(t, err)
	h2, err := p.Get()
	require.NoError(t, err)
	require.Equal(t, 2, p.Running(id))

	h1.Release()
	h1.Release()
	assert.Equal(t, 1, p.Running(id))
	h2.Release()
	assert.Equal(t, 0, p.Running(id))
}

func TestLeastConcurrent(t *testing.T) {
	p := New(WithStrategy(StrategyLeastConcurrent))
	id1 := p.Add(Config{BaseURL: "https://a.example.com"})
	id2 := p.Add(Config{BaseURL: "https://b.example.com"})

	h1, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id1, h1.ID)

	h2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id2, h2.ID)

	h2.Release()
	h3, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id2, h3.ID)
}

func TestFallbackPrefersIdle(t *testing.T) {
	p := New(WithStrategy(StrategyFallback))
	id1 := p.Add(Config{BaseURL: "https://a.example.com"})
	id2 := p.Add(Config{BaseURL: "https://b.example.com"})

	h1, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id1, h1.ID)

	// id1 is busy, so the first idle entry is id2.
	h2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id2, h2.ID)

	// No idle entry left; fall back to the first available one.
	h3, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id1, h3.ID)

	h1.Release()
	h2.Release()
	h3.Release()
}

func TestWeightedRandomFavorsHeavierEntries(t *testing.T) {
	p := New(
		WithStrategy(StrategyWeightedRandom),
		WithRandSource(rand.NewSource(42)),
	)
	heavy := p.Add(Config{BaseURL: "https://a.example.com", MaxConcurrent: 90})
	light := p.Add(Config{BaseURL: "https://b.example.com", MaxConcurrent: 10})

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		h, err := p.Get()
		require.NoError(t, err)
		counts[h.ID]++
		h.Release()
	}
	assert.Greater(t, counts[heavy], counts[light]*4)
}

func TestStrategyOverridePerCall(t *testing.T) {
	p := New(WithStrategy(StrategyRoundRobin))
	id1 := p.Add(Config{BaseURL: "https://a.example.com"})
	p.Add(Config{BaseURL: "https://b.example.com"})

	// Fallback always lands on the first idle entry regardless of the
	// pool's default strategy.
	for i := 0; i < 3; i++ {
		h, err := p.Get(StrategyFallback)
		require.NoError(t, err)
		assert.Equal(t, id1, h.ID)
		h.Release()
	}
}

func TestRemove(t *testing.T) {
	p := New()
	id1 := p.Add(Config{BaseURL: "https://a.example.com"})
	id2 := p.Add(Config{BaseURL: "https://b.example.com"})

	h, err := p.Get()
	require.NoError(t, err)
	require.Equal(t, id1, h.ID)

	require.NoError(t, p.Remove(id1))
	assert.Error(t, p.Remove(id1))

	// Releasing a handle for a removed entry is a no-op.
	h.Release()

	h2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id2, h2.ID)
	h2.Release()
}

func TestHandleDisableEnable(t *testing.T) {
	p := New()
	id := p.Add(Config{BaseURL: "https://a.example.com"})

	h, err := p.Get()
	require.NoError(t, err)
	require.Equal(t, id, h.ID)

	// Pulling the config out of rotation leaves the held slot intact.
	h.Disable()
	assert.Equal(t, 1, p.Running(id))
	_, err = p.Get()
	assert.ErrorIs(t, err, ErrNoAvailableProvider)

	h.Enable()
	h2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, id, h2.ID)
	h2.Release()
	h.Release()
}

func TestHandleDisableAfterRemove(t *testing.T) {
	p := New()
	id := p.Add(Config{BaseURL: "https://a.example.com"})

	h, err := p.Get()
	require.NoError(t, err)

	require.NoError(t, p.Remove(id))
	h.Disable()
	h.Enable()
	h.Release()
	assert.Equal(t, 0, p.Len())
}

func TestEmptyPool(t *testing.T) {
	p := New()
	_, err := p.Get()
	assert.ErrorIs(t, err, ErrNoAvailableProvider)
}

func TestUnknownStrategy(t *testing.T) {
	p := New()
	p.Add(Config{BaseURL: "https://a.example.com"})
	_, err := p.Get(Strategy("bogus"))
	assert.Error(t, err)
}

func TestLoadConfigs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	content := `
- base_url: https://a.example.com/v1
  api_key: key-a
  max_retries: 3
  max_concurrent: 8
  timeout: 30s
- base_url: https://b.example.com/v1
  api_key: key-b
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	configs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "https://a.example.com/v1", configs[0].BaseURL)
	assert.Equal(t, "key-a", configs[0].APIKey)
	assert.Equal(t, 3, configs[0].MaxRetries)
	assert.Equal(t, 8, configs[0].MaxConcurrent)
	assert.Equal(t, 30*time.Second, time.Duration(configs[0].Timeout))
	assert.Equal(t, "key-b", configs[1].APIKey)

	p, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
}

func TestLoadConfigsErrors(t *testing.T) {
	_, err := LoadConfigs("does-not-exist.yaml")
	assert.Error(t, err)

	_, err = ParseConfigs([]byte("not: [valid"))
	assert.Error(t, err)
}
