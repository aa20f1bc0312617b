package assoc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmaxSampleGreedy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	weights := []float64{0.2, 0.9, 0.5}

	for i := 0; i < 20; i++ {
		picks := SoftmaxSample(rng, weights, 0, 2)
		require.Equal(t, []int{1, 2}, picks)
	}
}

func TestSoftmaxSampleWithoutReplacement(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	weights := []float64{0.1, 0.2, 0.3, 0.4}

	picks := SoftmaxSample(rng, weights, 1.5, 4)
	require.Len(t, picks, 4)

	seen := make(map[int]bool)
	for _, p := range picks {
		assert.False(t, seen[p], "index %d drawn twice", p)
		seen[p] = true
	}
}

func TestSoftmaxSampleHighTemperatureExplores(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := []float64{0.01, 0.99}

	picked := make(map[int]int)
	for i := 0; i < 200; i++ {
		picks := SoftmaxSample(rng, weights, 10, 1)
		require.Len(t, picks, 1)
		picked[picks[0]]++
	}

	// Near-uniform at high temperature; the weak arm must get picked.
	assert.Greater(t, picked[0], 20)
	assert.Greater(t, picked[1], 20)
}

func TestSoftmaxSampleLowTemperatureExploits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := []float64{0.1, 0.9}

	wins := 0
	for i := 0; i < 200; i++ {
		picks := SoftmaxSample(rng, weights, 0.05, 1)
		if picks[0] == 1 {
			wins++
		}
	}
	assert.Greater(t, wins, 190)
}

func TestSoftmaxSampleEdgeCases(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Nil(t, SoftmaxSample(rng, nil, 1, 3))
	assert.Nil(t, SoftmaxSample(rng, []float64{1, 2}, 1, 0))

	picks := SoftmaxSample(rng, []float64{0.5}, 1, 5)
	assert.Equal(t, []int{0}, picks)
}
