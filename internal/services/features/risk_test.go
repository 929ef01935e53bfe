package features

import (
    "math"
    "testing"

    "EquityPulse/internal/domain/models"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestComputeRisk_TooShort(t *testing.T) {
    got := ComputeRisk(models.PriceSeries{pt("2024-03-15", 100)})
    assert.Nil(t, got.Vol7d)
    assert.Nil(t, got.Vol60d)
    assert.Nil(t, got.VolSpikeRatio)
    assert.Nil(t, got.Drawdown52w)
}

func TestComputeRisk_TwoPoints(t *testing.T) {
    got := ComputeRisk(models.PriceSeries{pt("2024-03-14", 100), pt("2024-03-15", 102)})
    assert.Nil(t, got.Vol7d)
    assert.Nil(t, got.Vol60d)
    assert.Nil(t, got.VolSpikeRatio)
    // Latest close is the window high.
    require.NotNil(t, got.Drawdown52w)
    assert.Equal(t, 0.0, *got.Drawdown52w)
}

func TestComputeRisk_Vol7dUsesNewestChanges(t *testing.T) {
    // Oldest first: 8 closes give 7 changes.
    series := daily("2024-03-01", 100, 101, 99, 102, 100, 103, 101, 104)
    got := ComputeRisk(series)

    closes := []float64{104, 101, 103, 100, 102, 99, 101, 100}
    changes := make([]float64, 0, 7)
    for i := 0; i < 7; i++ {
        changes = append(changes, closes[i+1]/closes[i]-1)
    }
    want, _ := SampleStd(changes)

    require.NotNil(t, got.Vol7d)
    assert.InDelta(t, want, *got.Vol7d, 1e-12)
    assert.Nil(t, got.Vol60d)
    assert.Nil(t, got.VolSpikeRatio)
}

func TestComputeRisk_SpikeRatio(t *testing.T) {
    closes := make([]float64, 0, 61)
    p := 100.0
    for i := 0; i < 61; i++ {
        // alternate small and large moves so both windows have spread
        if i%2 == 0 {
            p *= 1.01
        } else {
            p *= 0.995
        }
        closes = append(closes, p)
    }
    got := ComputeRisk(daily("2024-01-01", closes...))

    require.NotNil(t, got.Vol7d)
    require.NotNil(t, got.Vol60d)
    require.NotNil(t, got.VolSpikeRatio)
    assert.InDelta(t, *got.Vol7d / *got.Vol60d, *got.VolSpikeRatio, 1e-12)
}

func TestComputeRisk_FlatSeriesHasNoSpike(t *testing.T) {
    closes := make([]float64, 70)
    for i := range closes {
        closes[i] = 50
    }
    got := ComputeRisk(daily("2024-01-01", closes...))
    require.NotNil(t, got.Vol60d)
    assert.Equal(t, 0.0, *got.Vol60d)
    assert.Nil(t, got.VolSpikeRatio)
}

func TestComputeRisk_DrawdownSign(t *testing.T) {
    series := daily("2024-01-01", 100, 120, 90, 110)
    got := ComputeRisk(series)
    require.NotNil(t, got.Drawdown52w)
    assert.InDelta(t, (110.0-120)/120, *got.Drawdown52w, 1e-12)
    assert.LessOrEqual(t, *got.Drawdown52w, 0.0)
}

func TestComputeRisk_DrawdownWindowIgnoresOldHigh(t *testing.T) {
    closes := make([]float64, 300)
    closes[0] = 1000
    for i := 1; i < len(closes); i++ {
        closes[i] = 100
    }
    got := ComputeRisk(daily("2023-01-01", closes...))
    require.NotNil(t, got.Drawdown52w)
    assert.Equal(t, 0.0, *got.Drawdown52w)
}

func TestComputeRisk_AllZeroClosesHasNoDrawdown(t *testing.T) {
    got := ComputeRisk(daily("2024-01-01", 0, 0, 0))
    assert.Nil(t, got.Drawdown52w)
    assert.Nil(t, got.Vol7d)
}

func TestPctChangesKeepsZeroBaseInPlace(t *testing.T) {
    got := PctChanges([]float64{0, 10, 11})
    require.Len(t, got, 2)
    assert.True(t, math.IsInf(got[0], 1))
    assert.InDelta(t, 0.1, got[1], 1e-12)
}

func TestComputeRisk_ZeroCloseInsideWindowLeavesVolUndefined(t *testing.T) {
    // Newest first the zero close is the base of the third change.
    got := ComputeRisk(daily("2024-03-01", 98, 100, 101, 99, 102, 100, 0, 101, 104))
    assert.Nil(t, got.Vol7d)
    assert.Nil(t, got.Vol60d)
    assert.Nil(t, got.VolSpikeRatio)
    require.NotNil(t, got.Drawdown52w)
    assert.Equal(t, 0.0, *got.Drawdown52w)
}

func TestComputeRisk_ZeroCloseOutsideWindowKeepsVol(t *testing.T) {
    // The zero close is the oldest point and only ever a numerator.
    got := ComputeRisk(daily("2024-03-01", 0, 100, 101, 99, 102, 100, 103, 101, 104))
    assert.NotNil(t, got.Vol7d)
}

func TestSampleStd(t *testing.T) {
    v, ok := SampleStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
    require.True(t, ok)
    assert.InDelta(t, 2.138089935299395, v, 1e-12)

    _, ok = SampleStd([]float64{1})
    assert.False(t, ok)
}
