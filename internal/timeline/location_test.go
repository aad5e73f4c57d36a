package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceTo(t *testing.T) {
	a := Location{Latitude: 52.520008, Longitude: 13.404954}
	b := Location{Latitude: 48.856613, Longitude: 2.352222}

	assert.InDelta(t, 877_000, a.DistanceTo(b), 5_000)
	assert.InDelta(t, a.DistanceTo(b), b.DistanceTo(a), 1e-6)
	assert.Zero(t, a.DistanceTo(a))
}

func TestDistanceToShortRange(t *testing.T) {
	a := Location{Latitude: 37.628060, Longitude: -116.848463}
	// ~0.0009 degrees of latitude is roughly 100 m
	b := Location{Latitude: 37.628960, Longitude: -116.848463}

	assert.InDelta(t, 100, a.DistanceTo(b), 1)
}

func TestLocationValid(t *testing.T) {
	assert.True(t, Location{Latitude: 10, Longitude: 20}.Valid())
	assert.False(t, Location{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Location{Latitude: 0, Longitude: -181}.Valid())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Food ")
	require.NoError(t, err)
	assert.Equal(t, Food, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, Unknown, c)

	_, err = ParseCategory("napping")
	assert.Error(t, err)

	assert.Equal(t, Unknown, Categories()[0])
}
