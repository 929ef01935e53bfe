package usecase

import (
	"fmt"
	"io"
	"text/tabwriter"

	"EquityPulse/internal/domain/models"
	"EquityPulse/pkg/util"
)

// Missing is rendered for undefined values.
const Missing = "—"

// FormatPct renders a fraction as a two-decimal percentage.
func FormatPct(v *float64) string {
	if v == nil {
		return Missing
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

// FormatRatio renders a multiple, e.g. "1.23x".
func FormatRatio(v *float64) string {
	if v == nil {
		return Missing
	}
	return fmt.Sprintf("%.2fx", *v)
}

func FormatScore(v *float64) string {
	if v == nil {
		return Missing
	}
	return fmt.Sprintf("%.2f", *v)
}

// RenderTriage writes rows as an aligned text table.
func RenderTriage(w io.Writer, rows []models.TriageRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tWEIGHT\t24H\t7D\tMTD\tQTD\tYTD\tSPIKE\tDRAWDOWN\tSCORE")
	for _, r := range rows {
		weight := r.Weight
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Ticker,
			FormatPct(&weight),
			FormatPct(r.Return24h),
			FormatPct(r.Return7d),
			FormatPct(r.ReturnMTD),
			FormatPct(r.ReturnQTD),
			FormatPct(r.ReturnYTD),
			FormatRatio(r.VolSpikeRatio),
			FormatPct(r.Drawdown52w),
			FormatScore(r.WhatChangedScore),
		)
	}
	if len(rows) > 0 {
		fmt.Fprintf(tw, "as of %s\n", util.FormatDate(rows[0].AsOfDate))
	}
	return tw.Flush()
}
