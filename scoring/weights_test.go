package scoring

import (
	"math"
	"sync"
	"testing"
)

func TestWeightsNormalized(t *testing.T) {
	c := NewWeightCache()

	for _, size := range []int{1, 2, 3, 10, 250, 5000} {
		w := c.Weights(size)
		if len(w) != size {
			t.Fatalf("size %d: expected %d weights, got %d", size, size, len(w))
		}

		sum := 0.0
		for i, x := range w {
			sum += x
			if i > 0 && x >= w[i-1] {
				t.Errorf("size %d: weight %d (%v) is not below weight %d (%v)", size, i, x, i-1, w[i-1])
			}
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("size %d: expected weights to sum to 1, got %v", size, sum)
		}
	}
}

func TestWeightsSizeTwo(t *testing.T) {
	w := NewWeightCache().Weights(2)
	if math.Abs(w[0]-2.0/3.0) > 1e-12 || math.Abs(w[1]-1.0/3.0) > 1e-12 {
		t.Errorf("expected [2/3 1/3], got %v", w)
	}
}

func TestWeightsEmpty(t *testing.T) {
	if w := NewWeightCache().Weights(0); len(w) != 0 {
		t.Errorf("expected no weights, got %v", w)
	}
}

func TestWeightsComputedOncePerSize(t *testing.T) {
	c := NewWeightCache()

	var wg sync.WaitGroup
	results := make([][]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Weights(100)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if &results[i][0] != &results[0][0] {
			t.Fatalf("expected every caller to share the same vector")
		}
	}

	c.Weights(7)
	if c.Len() != 2 {
		t.Errorf("expected 2 cached sizes, got %d", c.Len())
	}
}
