package assoc

import (
	"math"
	"math/rand"
	"sort"
)

// greedyTemperature is the threshold under which sampling degenerates
// to a deterministic pick of the highest weights.
const greedyTemperature = 1e-6

// SoftmaxSample draws up to k distinct indices from weights, with
// probability proportional to softmax(weight / temperature). A
// temperature at or below greedyTemperature selects the top-k weights
// deterministically; higher temperatures flatten the distribution
// toward uniform.
func SoftmaxSample(rng *rand.Rand, weights []float64, temperature float64, k int) []int {
	n := len(weights)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	if temperature <= greedyTemperature {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return weights[idx[a]] > weights[idx[b]]
		})
		return idx[:k]
	}

	// Shift by the max weight before exponentiating to avoid overflow.
	maxW := weights[0]
	for _, w := range weights[1:] {
		if w > maxW {
			maxW = w
		}
	}

	probs := make([]float64, n)
	for i, w := range weights {
		probs[i] = math.Exp((w - maxW) / temperature)
	}

	picked := make([]int, 0, k)
	taken := make([]bool, n)
	for len(picked) < k {
		var total float64
		for i, p := range probs {
			if !taken[i] {
				total += p
			}
		}
		if total <= 0 {
			break
		}

		r := rng.Float64() * total
		choice := -1
		for i, p := range probs {
			if taken[i] {
				continue
			}
			r -= p
			if r <= 0 {
				choice = i
				break
			}
		}
		if choice < 0 {
			// Float round-off on the last partial sum.
			for i := n - 1; i >= 0; i-- {
				if !taken[i] {
					choice = i
					break
				}
			}
		}

		taken[choice] = true
		picked = append(picked, choice)
	}

	return picked
}
