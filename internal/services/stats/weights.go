// Package stats holds pure numeric helpers over factor series.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"AShareData/internal/domain/models"
)

// ExponentialWeights returns n weights, most recent last, halving every
// halfLife observations: w[i] = 2^(-(n-1-i)/halfLife). The last weight
// is 1.
func ExponentialWeights(n int, halfLife float64) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n = %d: %w", n, models.ErrInvalidArgument)
	}
	if !(halfLife > 0) || math.IsInf(halfLife, 0) {
		return nil, fmt.Errorf("half life = %v: %w", halfLife, models.ErrInvalidArgument)
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Exp2(-float64(n-1-i) / halfLife)
	}
	return w, nil
}

// WeightedMean is the exponentially weighted mean of xs, ordered oldest
// first.
func WeightedMean(xs []float64, halfLife float64) (float64, error) {
	w, err := ExponentialWeights(len(xs), halfLife)
	if err != nil {
		return 0, err
	}
	return stat.Mean(xs, w), nil
}
