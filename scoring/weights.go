package scoring

import (
	"math"
	"sync"
)

const powerLawExponent = 1.0

// WeightCache holds one normalized power-law weight vector per leaderboard size.
// Each vector is computed at most once and is shared read-only afterwards.
type WeightCache struct {
	mu      sync.Mutex
	entries map[int]*weightEntry
}

type weightEntry struct {
	once    sync.Once
	weights []float64
}

func NewWeightCache() *WeightCache {
	return &WeightCache{entries: make(map[int]*weightEntry)}
}

// Weights returns the vector for size. The caller must not modify it.
func (c *WeightCache) Weights(size int) []float64 {
	c.mu.Lock()
	e, ok := c.entries[size]
	if !ok {
		e = &weightEntry{}
		c.entries[size] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.weights = normalizedPowerLaw(size)
	})
	return e.weights
}

func (c *WeightCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func normalizedPowerLaw(size int) []float64 {
	if size <= 0 {
		return nil
	}

	weights := make([]float64, size)
	sum := 0.0
	for i := range weights {
		weights[i] = 1 / math.Pow(float64(i+1), powerLawExponent)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}
