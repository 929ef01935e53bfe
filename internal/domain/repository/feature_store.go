package repository

// Tables names the storage objects a backend reads and writes. Input tables
// belong to ingestion; feature tables are owned by the engine.
type Tables struct {
	Prices          string
	BenchmarkPrices string
	SecurityMaster  string
	Benchmarks      string
	Positions       string

	Returns          string
	BenchmarkReturns string
	Portfolio        string
}

// DefaultTables mirrors the core/feat schema layout.
func DefaultTables() Tables {
	return Tables{
		Prices:           "core.core_prices_daily",
		BenchmarkPrices:  "core.core_benchmark_prices_daily",
		SecurityMaster:   "core.core_security_master",
		Benchmarks:       "core.core_benchmarks",
		Positions:        "core.core_positions",
		Returns:          "feat.feat_returns",
		BenchmarkReturns: "feat.feat_benchmark_returns",
		Portfolio:        "feat.feat_portfolio",
	}
}
