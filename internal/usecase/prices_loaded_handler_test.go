package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"EquityPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls []time.Time
	err   error
}

func (r *stubRunner) Run(_ context.Context, asOf time.Time) (*models.RunReport, error) {
	r.calls = append(r.calls, asOf)
	if r.err != nil {
		return nil, r.err
	}
	return &models.RunReport{AsOfDate: asOf}, nil
}

func TestPricesLoadedHandler(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		runErr    error
		wantErr   bool
		wantCalls int
		wantDate  time.Time
	}{
		{name: "date", payload: `{"as_of_date":"2024-03-15","source":"eod"}`, wantCalls: 1, wantDate: refDate},
		{name: "empty date", payload: `{"source":"eod"}`, wantCalls: 1},
		{name: "bad json", payload: `{`, wantErr: true},
		{name: "bad date", payload: `{"as_of_date":"15/03/2024"}`, wantErr: true},
		{name: "in progress", payload: `{"as_of_date":"2024-03-15"}`, runErr: ErrRunInProgress, wantCalls: 1, wantDate: refDate},
		{name: "run error", payload: `{"as_of_date":"2024-03-15"}`, runErr: errors.New("db down"), wantErr: true, wantCalls: 1, wantDate: refDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{err: tt.runErr}
			h := NewPricesLoadedHandler("prices.loaded", r, nil)
			assert.Equal(t, "prices.loaded", h.Topic())

			err := h.Handle(context.Background(), []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, r.calls, tt.wantCalls)
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantDate, r.calls[0])
			}
		})
	}
}
