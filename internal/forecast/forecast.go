// Package forecast projects a monthly cost series forward under trend,
// best case and worst case growth.
package forecast

import (
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
)

const (
	DefaultHorizon = 12

	// Best case grows slower than the trend, worst case faster.
	bestCaseFactor  = 0.5
	worstCaseFactor = 1.5
)

type Point struct {
	Month     month.Month `json:"month"`
	Cost      float64     `json:"cost"`
	BestCase  float64     `json:"best_case"`
	WorstCase float64     `json:"worst_case"`
}

type Sums struct {
	TotalForecast  float64 `json:"total_forecast"`
	TotalBestCase  float64 `json:"total_best_case"`
	TotalWorstCase float64 `json:"total_worst_case"`
}

// GrowthRates are monthly rates expressed as percentages.
type GrowthRates struct {
	TrendBased float64 `json:"trend_based"`
	BestCase   float64 `json:"best_case"`
	WorstCase  float64 `json:"worst_case"`
}

type Forecast struct {
	Data        []Point     `json:"forecast_data"`
	Sums        Sums        `json:"sums"`
	GrowthRates GrowthRates `json:"growth_rates"`
}

// Empty is returned when there is not enough history to project.
func Empty() Forecast {
	return Forecast{Data: []Point{}}
}

// Predict projects history forward by horizon months. History need not be
// sorted. Fewer than two points, a non-positive horizon, or a projection
// that overflows float64 yields Empty.
func Predict(history []costs.Point, horizon int) Forecast {
	if len(history) < 2 || horizon <= 0 {
		return Empty()
	}

	sorted := slices.Clone(history)
	slices.SortFunc(sorted, func(a, b costs.Point) int {
		return a.Month.Compare(b.Month)
	})

	trend := AverageGrowth(sorted)
	best := trend * bestCaseFactor
	worst := trend * worstCaseFactor
	if !finite(trend, best, worst) {
		return Empty()
	}

	last := sorted[len(sorted)-1]
	cost, bestCost, worstCost := last.Cost, last.Cost, last.Cost
	m := last.Month

	f := Forecast{Data: make([]Point, 0, horizon)}
	var sumTrend, sumBest, sumWorst decimal.Decimal
	for range horizon {
		m = m.Next()
		cost *= 1 + trend
		bestCost *= 1 + best
		worstCost *= 1 + worst
		if !finite(cost, bestCost, worstCost) {
			return Empty()
		}

		c, b, w := round(cost), round(bestCost), round(worstCost)
		sumTrend = sumTrend.Add(c)
		sumBest = sumBest.Add(b)
		sumWorst = sumWorst.Add(w)

		f.Data = append(f.Data, Point{
			Month:     m,
			Cost:      c.InexactFloat64(),
			BestCase:  b.InexactFloat64(),
			WorstCase: w.InexactFloat64(),
		})
	}

	f.Sums = Sums{
		TotalForecast:  sumTrend.InexactFloat64(),
		TotalBestCase:  sumBest.InexactFloat64(),
		TotalWorstCase: sumWorst.InexactFloat64(),
	}
	f.GrowthRates = GrowthRates{
		TrendBased: percent(trend),
		BestCase:   percent(best),
		WorstCase:  percent(worst),
	}
	if !finite(f.Sums.TotalForecast, f.Sums.TotalBestCase, f.Sums.TotalWorstCase,
		f.GrowthRates.TrendBased, f.GrowthRates.BestCase, f.GrowthRates.WorstCase) {
		return Empty()
	}
	return f
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// AverageGrowth is the mean month over month growth of a sorted series.
// Pairs whose earlier cost is not positive are skipped.
func AverageGrowth(sorted []costs.Point) float64 {
	var total float64
	var n int
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Cost
		if prev <= 0 {
			continue
		}
		total += (sorted[i].Cost - prev) / prev
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func percent(rate float64) float64 {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
