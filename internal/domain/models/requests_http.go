package models

// Requests for feature HTTP endpoints. Dates are YYYY-MM-DD.

type ReturnRequest struct {
	SecurityID int64  `query:"security_id" json:"security_id" validate:"required,gt=0"`
	AsOf       string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type BenchmarkReturnRequest struct {
	BenchmarkID int64  `query:"benchmark_id" json:"benchmark_id" validate:"required,gt=0"`
	AsOf        string `query:"as_of" json:"as_of" validate:"required,datetime=2006-01-02"`
}

type PortfolioRequest struct {
	AsOf string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type TriageRequest struct {
	SortBy    string  `query:"sort" json:"sort" default:"score" validate:"oneof=score drawdown vol_spike"`
	MinWeight float64 `query:"min_weight" json:"min_weight" validate:"gte=0,lte=1"`
	Limit     int     `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=1000"`
}

type ComputeRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}
