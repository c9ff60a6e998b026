package evaluation

import "github.com/shopspring/decimal"

// WeightedScore is one (weight, score) pair fed to WeightedAverage.
type WeightedScore struct {
	Weight float64
	Score  float64
}

// WeightedAverage returns Σ(weight×score) / Σweight rounded to two decimals, or 0 when
// the weights sum to 0. Weights are used as given, not normalised to 1.
func WeightedAverage(entries []WeightedScore) float64 {
	var sum, totalWeight float64
	for _, e := range entries {
		sum += e.Weight * e.Score
		totalWeight += e.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return Round2(sum / totalWeight)
}

// Round2 rounds half away from zero to two decimal places. It works on the
// shortest decimal form of v, so 1.005 rounds to 1.01 even though the nearest
// float64 is slightly below it.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
