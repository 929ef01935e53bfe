package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"EquityPulse/internal/domain/models"
	applogger "EquityPulse/pkg/logger"
	"EquityPulse/pkg/util"
)

// PricesLoadedHandler starts a run when ingestion announces new closes.
// It satisfies pkg/kafka.MessageHandler.
type PricesLoadedHandler struct {
	topic  string
	runner FeatureRunner
	l      *applogger.Logger
}

func NewPricesLoadedHandler(topic string, runner FeatureRunner, l *applogger.Logger) *PricesLoadedHandler {
	if l == nil {
		l = applogger.NewNop()
	}
	return &PricesLoadedHandler{topic: topic, runner: runner, l: l}
}

func (h *PricesLoadedHandler) Topic() string { return h.topic }

// Handle expects {"as_of_date":"YYYY-MM-DD","source":"..."}; an empty date
// means today. A run already holding the date's lock is not an error.
func (h *PricesLoadedHandler) Handle(ctx context.Context, b []byte) error {
	var evt models.PricesLoadedEvent
	if err := json.Unmarshal(b, &evt); err != nil {
		return fmt.Errorf("decode prices loaded event: %w", err)
	}
	asOf, ok := util.ParseDate(evt.AsOfDate)
	if !ok {
		return fmt.Errorf("invalid as_of_date %q", evt.AsOfDate)
	}

	report, err := h.runner.Run(ctx, asOf)
	if errors.Is(err, ErrRunInProgress) {
		h.l.Info("prices loaded: run already in progress", applogger.String("as_of", evt.AsOfDate))
		return nil
	}
	if err != nil {
		return err
	}
	h.l.Info("prices loaded: run complete",
		applogger.String("source", evt.Source),
		applogger.Date("as_of", report.AsOfDate),
		applogger.Int("failures", len(report.Failures)),
	)
	return nil
}
