package sequences

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "live_drink")
	assert.Contains(t, names, "cached_drink")
	assert.IsIncreasing(t, names)
}

func TestLoad_AllValidAndOrdered(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			obs, err := Load(name)
			require.NoError(t, err)
			require.NotEmpty(t, obs)

			for i := range obs {
				require.NoError(t, obs[i].Validate(), "frame %d", i)
				if i > 0 {
					assert.True(t, obs[i].Timestamp.After(obs[i-1].Timestamp), "frame %d not after previous", i)
				}
			}
		})
	}
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("nope")
	assert.Error(t, err)
}
