package ingest

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/vb/internal/config"
)

func TestClaimJobSingleWinner(t *testing.T) {
	m := NewManager(nil, nil, nil, &config.Config{})

	const starters = 16
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.claimJob("job-1", &activeJob{}) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, wins, "concurrent starts must claim the slot exactly once")
	require.Equal(t, 1, m.ActiveCount())

	m.releaseJob("job-1")
	require.Equal(t, 0, m.ActiveCount())
	require.True(t, m.claimJob("job-1", &activeJob{}), "slot is claimable again after release")
}
