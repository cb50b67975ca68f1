package forecast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/month"
)

func pt(s string, cost float64) costs.Point {
	return costs.Point{Month: month.MustParse(s), Cost: cost}
}

func TestPredict_DoublingSeries(t *testing.T) {
	f := Predict([]costs.Point{pt("01-2024", 100), pt("02-2024", 200)}, 1)

	require.Len(t, f.Data, 1)
	assert.Equal(t, "03-2024", f.Data[0].Month.String())
	assert.Equal(t, 400.0, f.Data[0].Cost)
	assert.Equal(t, 300.0, f.Data[0].BestCase)
	assert.Equal(t, 500.0, f.Data[0].WorstCase)
	assert.Equal(t, GrowthRates{TrendBased: 100, BestCase: 50, WorstCase: 150}, f.GrowthRates)
	assert.Equal(t, Sums{TotalForecast: 400, TotalBestCase: 300, TotalWorstCase: 500}, f.Sums)
}

func TestPredict_FewerThanTwoPoints(t *testing.T) {
	for _, history := range [][]costs.Point{nil, {pt("01-2024", 100)}} {
		f := Predict(history, DefaultHorizon)
		assert.Empty(t, f.Data)
		assert.Equal(t, Sums{}, f.Sums)
		assert.Equal(t, GrowthRates{}, f.GrowthRates)
	}
}

func TestPredict_EmptyMarshalsAsList(t *testing.T) {
	b, err := json.Marshal(Predict(nil, DefaultHorizon))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"forecast_data":[]`)
}

func TestPredict_SortsUnorderedHistory(t *testing.T) {
	f := Predict([]costs.Point{pt("02-2024", 200), pt("12-2023", 50), pt("01-2024", 100)}, 2)

	require.Len(t, f.Data, 2)
	assert.Equal(t, "03-2024", f.Data[0].Month.String())
	assert.Equal(t, "04-2024", f.Data[1].Month.String())
	assert.Equal(t, 400.0, f.Data[0].Cost)
	assert.Equal(t, 800.0, f.Data[1].Cost)
}

func TestPredict_CalendarStepping(t *testing.T) {
	f := Predict([]costs.Point{pt("11-2023", 10), pt("12-2023", 10)}, DefaultHorizon)

	require.Len(t, f.Data, DefaultHorizon)
	want := month.New(2024, time.January)
	for _, p := range f.Data {
		assert.Equal(t, want, p.Month)
		want = want.Next()
	}
	assert.Equal(t, "12-2024", f.Data[11].Month.String())
}

func TestPredict_SkipsZeroBaseline(t *testing.T) {
	history := []costs.Point{pt("01-2024", 0), pt("02-2024", 100), pt("03-2024", 110)}
	f := Predict(history, 1)

	assert.Equal(t, 10.0, f.GrowthRates.TrendBased)
	assert.Equal(t, 121.0, f.Data[0].Cost)
}

func TestPredict_AllZeroHistoryIsFlat(t *testing.T) {
	f := Predict([]costs.Point{pt("01-2024", 0), pt("02-2024", 0)}, 3)

	require.Len(t, f.Data, 3)
	for _, p := range f.Data {
		assert.Zero(t, p.Cost)
	}
	assert.Equal(t, GrowthRates{}, f.GrowthRates)
}

func TestPredict_ScenarioOrdering(t *testing.T) {
	growing := Predict([]costs.Point{pt("01-2024", 100), pt("02-2024", 113.7), pt("03-2024", 121.4)}, DefaultHorizon)
	for _, p := range growing.Data {
		assert.LessOrEqual(t, p.BestCase, p.Cost)
		assert.LessOrEqual(t, p.Cost, p.WorstCase)
	}

	shrinking := Predict([]costs.Point{pt("01-2024", 500), pt("02-2024", 420), pt("03-2024", 390)}, DefaultHorizon)
	for _, p := range shrinking.Data {
		assert.GreaterOrEqual(t, p.BestCase, p.Cost)
		assert.GreaterOrEqual(t, p.Cost, p.WorstCase)
	}
}

func TestPredict_SumsMatchRoundedPoints(t *testing.T) {
	f := Predict([]costs.Point{pt("01-2024", 33.33), pt("02-2024", 35.71)}, DefaultHorizon)

	var total float64
	for _, p := range f.Data {
		total += p.Cost
	}
	assert.InDelta(t, total, f.Sums.TotalForecast, 0.001)
}

func TestPredict_Deterministic(t *testing.T) {
	history := []costs.Point{pt("01-2024", 12.5), pt("02-2024", 19.75), pt("03-2024", 18)}
	assert.Equal(t, Predict(history, 6), Predict(history, 6))
}

func TestPredict_OverflowYieldsEmpty(t *testing.T) {
	histories := map[string][]costs.Point{
		"growth rate overflows": {pt("01-2024", 1e-300), pt("02-2024", 1e10)},
		"first step overflows":  {pt("01-2024", 1e300), pt("02-2024", 1e307)},
		"later step overflows":  {pt("01-2024", 1), pt("02-2024", 1e150)},
		"sum overflows":         {pt("01-2024", 1e308), pt("02-2024", 1e308)},
	}
	for name, history := range histories {
		t.Run(name, func(t *testing.T) {
			var f Forecast
			require.NotPanics(t, func() { f = Predict(history, DefaultHorizon) })
			assert.Equal(t, Empty(), f)

			_, err := json.Marshal(f)
			assert.NoError(t, err)
		})
	}
}

func TestPredict_LargeFiniteSeries(t *testing.T) {
	f := Predict([]costs.Point{pt("01-2024", 1e12), pt("02-2024", 2e12)}, 3)

	require.Len(t, f.Data, 3)
	assert.Equal(t, 1.6e13, f.Data[2].Cost)
	_, err := json.Marshal(f)
	assert.NoError(t, err)
}
