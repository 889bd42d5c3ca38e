package config

// Regions that carry per-region product decision tables on the host form.
var regions = []string{"N.A.", "E-A", "A-P", "L.A."}

var (
	marketingSweep  = []float64{0, 250, 500, 750, 1000, 1500, 2000, 2500, 3000, 4000, 5000, 6000, 7500, 9000, 10000}
	productionSweep = []float64{0, 100, 250, 500, 750, 1000, 1500, 2000, 2500, 3000, 3500, 4000, 4500, 5000}
	searchAdSweep   = []float64{0, 500, 1000, 1500, 2000, 2500, 3000, 4000, 5000, 6000, 7500, 9000, 10500, 12000, 13500, 15000}
	recruitSweep    = []float64{0, 500, 1000, 1500, 2000, 2500, 3000, 4000, 5000, 6000, 7500, 9000, 10000}
)

// DefaultConfig returns a configuration usable without a file
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Search: Search{
			Objective:         "eps",
			Steps:             []float64{100, 50, 25, 10, 5, 1},
			BroadSweep:        true,
			OptimizeChoices:   true,
			Precision:         2,
			SettleDelay:       "2s",
			InterPassDelay:    "5s",
			StagnationTimeout: "5m",
		},
		Restart: Restart{
			Strategy:        "random",
			Attempts:        10,
			SettleDelay:     "2s",
			SwarmPopulation: 6,
		},
		Observer: Observer{
			Enabled:      true,
			PollInterval: "1s",
		},
		Form: Form{
			Driver:            "sim",
			Headless:          true,
			InputClass:        "input-field",
			IgnoreSelectClass: "entry-assumptions-select",
			RecalculateLabels: []string{"calculate", "update scores"},
		},
		Classifier: DefaultClassifier(),
		Measures:   DefaultMeasures(),
		Storage: Storage{
			HistoryPath: "formopt-history.db",
		},
		Server: Server{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
	}
}

// DefaultClassifier returns the built-in label vocabulary in priority order,
// the three category profiles and the exact-label product overrides.
func DefaultClassifier() Classifier {
	c := Classifier{
		Rules: []Rule{
			{Pattern: "price", Category: "price"},
			{Pattern: "budget", Category: "marketing"},
			{Pattern: "advertising", Category: "marketing"},
			{Pattern: "support", Category: "marketing"},
			{Pattern: "displays", Category: "production"},
			{Pattern: "website", Category: "production"},
			{Pattern: "production", Category: "production"},
		},
		Profiles: map[string]Profile{
			"price":      {Min: 75, Max: 1000},
			"marketing":  {Min: 0, Max: 10000, Sweep: marketingSweep},
			"production": {Min: 0, Max: 5000, Sweep: productionSweep},
		},
	}
	for _, r := range regions {
		c.Overrides = append(c.Overrides,
			Override{Label: r + " Retail Price", Min: 500, Max: 5000},
			Override{Label: r + " Average Retail Price", Min: 500, Max: 5000},
			Override{Label: r + " Search Engine Advertising", Min: 0, Max: 15000, Sweep: searchAdSweep},
			Override{Label: r + " Retailer Recruitment/Support Budget", Min: 0, Max: 10000, Sweep: recruitSweep},
		)
	}
	return c
}

// DefaultMeasures returns the measure-name table of the metric reader
func DefaultMeasures() []Measure {
	return []Measure{
		{Pattern: "earnings per share", Key: "eps"},
		{Pattern: "net revenues", Key: "net_revenue"},
		{Pattern: "net profit", Key: "profit"},
		{Pattern: "cash", Key: "cash"},
		{Pattern: "image rating", Key: "image_rating"},
		{Pattern: "market share", Key: "market_share"},
		{Pattern: "stock price", Key: "stock_price"},
		{Pattern: "return on assets", Key: "roa"},
	}
}
