package config

// Venues picks the price provider and the legs of the spread.
// Primary and Secondary are traded; Auxiliary only contributes to the three-venue mid.
type Venues struct {
	Provider   string `yaml:"provider" env:"PROVIDER"` // stub|rest|csv
	Primary    string `yaml:"primary" env:"PRIMARY"`
	Secondary  string `yaml:"secondary" env:"SECONDARY"`
	Auxiliary  string `yaml:"auxiliary" env:"AUXILIARY"`
	BinanceURL string `yaml:"binance_url" env:"BINANCE_URL"`
	OKXURL     string `yaml:"okx_url" env:"OKX_URL"`
	BybitURL   string `yaml:"bybit_url" env:"BYBIT_URL"`
	CSVDir     string `yaml:"csv_dir" env:"CSV_DIR"`
	PageLimit  int    `yaml:"page_limit" env:"PAGE_LIMIT"`
	TimeoutSec int    `yaml:"timeout_sec" env:"TIMEOUT_SEC"`
	Retries    int    `yaml:"retries" env:"RETRIES"`
}

// List returns the configured legs in panel order, omitting an empty auxiliary.
func (v Venues) List() []string {
	out := []string{v.Primary, v.Secondary}
	if v.Auxiliary != "" {
		out = append(out, v.Auxiliary)
	}
	return out
}

func (v *Venues) applyDefaults() {
	if v.Provider == "" {
		v.Provider = "stub"
	}
	if v.Primary == "" {
		v.Primary = "binance"
	}
	if v.Secondary == "" {
		v.Secondary = "okx"
	}
	if v.TimeoutSec == 0 {
		v.TimeoutSec = 10
	}
	if v.Retries == 0 {
		v.Retries = 3
	}
}
