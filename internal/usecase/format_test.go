package usecase

import (
	"bytes"
	"strings"
	"testing"

	"EquityPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1.23%", FormatPct(fp(0.01234)))
	assert.Equal(t, "-5.00%", FormatPct(fp(-0.05)))
	assert.Equal(t, Missing, FormatPct(nil))
	assert.Equal(t, "2.50x", FormatRatio(fp(2.5)))
	assert.Equal(t, Missing, FormatRatio(nil))
	assert.Equal(t, "3.14", FormatScore(fp(3.14159)))
	assert.Equal(t, Missing, FormatScore(nil))
}

func TestRenderTriage(t *testing.T) {
	rows := []models.TriageRow{
		{Ticker: "AAA", AsOfDate: refDate, Weight: 0.25, Returns: models.Returns{Return24h: fp(0.01)}, WhatChangedScore: fp(1.5)},
		{Ticker: "BBB", AsOfDate: refDate, Weight: 0.1},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderTriage(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "TICKER"))
	assert.Contains(t, lines[1], "25.00%")
	assert.Contains(t, lines[1], "1.00%")
	assert.Contains(t, lines[1], "1.50")
	assert.Contains(t, lines[2], Missing)
	assert.Equal(t, "as of 2024-03-15", lines[3])
}
