package driver

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkersCheckAndSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".processed")

	m, err := LoadMarkers(path)
	require.NoError(t, err)
	assert.False(t, m.Seen("01A"))

	won, err := m.MarkIfNew("01A")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = m.MarkIfNew("01A")
	require.NoError(t, err)
	assert.False(t, won, "second marking loses")
	assert.True(t, m.Seen("01A"))
}

func TestMarkersSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".processed")

	m, err := LoadMarkers(path)
	require.NoError(t, err)
	for _, id := range []string{"01A", "01B"} {
		_, err := m.MarkIfNew(id)
		require.NoError(t, err)
	}

	reloaded, err := LoadMarkers(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Seen("01A"))
	assert.True(t, reloaded.Seen("01B"))
	assert.False(t, reloaded.Seen("01C"))
}

func TestMarkersConcurrentSingleWinner(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".processed")
	m, err := LoadMarkers(path)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := m.MarkIfNew("01RACE")
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
