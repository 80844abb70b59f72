// Package indicators wraps the cinar/indicator library for the short price
// windows kept by the competition.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// CalculateEMA calculates the Exponential Moving Average for the given period.
// The result has len(values)-period+1 points; the last one is the latest EMA.
func CalculateEMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(decimalsToFloat64(values))))

	return float64ToDecimals(out), nil
}

// LatestEMA returns the most recent EMA value.
func LatestEMA(values []decimal.Decimal, period int) (decimal.Decimal, error) {
	series, err := CalculateEMA(values, period)
	if err != nil {
		return decimal.Zero, err
	}
	if len(series) == 0 {
		return decimal.Zero, fmt.Errorf("ema produced no output for %d points", len(values))
	}
	return series[len(series)-1], nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
