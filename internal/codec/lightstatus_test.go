package codec

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromName(t *testing.T) {
	t.Parallel()

	t.Run("known names resolve to their codes", func(t *testing.T) {
		t.Parallel()
		s, err := StatusFromName("daytimeRunningLightsOn")
		require.NoError(t, err)
		assert.Equal(t, DaytimeRunningLightsOn, s)
		assert.Equal(t, 4, int(s))

		s, err = StatusFromName("lowBeamHeadlightsOn")
		require.NoError(t, err)
		assert.Equal(t, 0, int(s))
	})

	t.Run("unknown name fails", func(t *testing.T) {
		t.Parallel()
		_, err := StatusFromName("bogus")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownStatus))
	})
}

func TestTableIsABijection(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for code := 0; code < numStatuses; code++ {
		name := LightStatus(code).String()
		require.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true

		back, err := StatusFromName(name)
		require.NoError(t, err)
		assert.Equal(t, LightStatus(code), back)
	}
	assert.Len(t, seen, 8)
}

func TestInvalidStatusString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "LightStatus(42)", LightStatus(42).String())
	assert.False(t, LightStatus(-1).Valid())
	assert.False(t, LightStatus(8).Valid())
}

func TestRandomStatusStaysInRange(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		assert.True(t, RandomStatus(rng).Valid())
	}
}
