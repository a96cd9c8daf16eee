package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	ossignal "os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"statarb-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)
	_ = godotenv.Load() // best-effort

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== StatArb Backtest ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit backtest window and fees")
		fmt.Println("3) Edit venues")
		fmt.Println("4) Edit strategy")
		fmt.Println("5) Save config")
		fmt.Println("6) Run backtest")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editBacktest(reader, cfg)
		case "3":
			editVenues(reader, cfg)
		case "4":
			editStrategy(reader, cfg)
		case "5":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "config is invalid, not saved:\n%v\n", err)
			} else if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "6":
			launchBacktest()
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	for _, p := range cfg.Echo() {
		fmt.Printf("%-24s %s\n", p.Name, p.Value)
	}
	fmt.Printf("%-24s %s\n", "report dir", cfg.Report.Dir)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nvalidation problems:\n%v\n", err)
	}
}

func editBacktest(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Backtest ---")
	cfg.Backtest.Symbol = promptString(reader, "Symbol (BASE/QUOTE[:SETTLE])", cfg.Backtest.Symbol)
	cfg.Backtest.Timeframe = promptString(reader, "Timeframe (1m..1d)", cfg.Backtest.Timeframe)
	cfg.Backtest.Start = promptString(reader, "Start (YYYY-MM-DD)", cfg.Backtest.Start)
	cfg.Backtest.End = promptString(reader, "End (YYYY-MM-DD)", cfg.Backtest.End)
	cfg.Backtest.Fee = promptPercent(reader, "Fee per side (%)", cfg.Backtest.Fee)
	cfg.Backtest.TopDrawdowns = int(promptFloat(reader, "Top drawdowns", float64(cfg.Backtest.TopDrawdowns)))
}

func editVenues(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Venues ---")
	cfg.Venues.Provider = promptString(reader, "Provider (stub|rest|csv)", cfg.Venues.Provider)
	cfg.Venues.Primary = promptString(reader, "Primary venue", cfg.Venues.Primary)
	cfg.Venues.Secondary = promptString(reader, "Secondary venue", cfg.Venues.Secondary)
	cfg.Venues.Auxiliary = promptString(reader, "Auxiliary venue (- for none)", cfg.Venues.Auxiliary)
	if cfg.Venues.Auxiliary == "-" {
		cfg.Venues.Auxiliary = ""
	}
	if strings.EqualFold(cfg.Venues.Provider, "csv") {
		cfg.Venues.CSVDir = promptString(reader, "CSV directory", cfg.Venues.CSVDir)
	}
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Strategy ---")
	cfg.Strategy.Mode = promptString(reader, "Mode (adaptive|midprice|zscore)", cfg.Strategy.Mode)
	p := &cfg.Strategy.Params
	switch strings.ToLower(cfg.Strategy.Mode) {
	case "midprice", "mid", "three_venue":
		p.PrimaryMinDistance = promptPercent(reader, "Primary min distance (%)", p.PrimaryMinDistance)
		p.SecondaryMinDistance = promptPercent(reader, "Secondary min distance (%)", p.SecondaryMinDistance)
	case "zscore", "z":
		p.Lookback = int(promptFloat(reader, "Lookback (bars)", float64(p.Lookback)))
		p.Halflife = promptFloat(reader, "EWM half-life (bars)", p.Halflife)
		p.ZLowerBound = promptFloat(reader, "Z lower bound", p.ZLowerBound)
	default:
		p.Threshold = promptPercent(reader, "Threshold floor (%)", p.Threshold)
		p.Window = int(promptFloat(reader, "Window (bars)", float64(p.Window)))
		p.Percentile = promptFloat(reader, "Percentile", p.Percentile)
	}
}

func launchBacktest() {
	fmt.Println("Running backtest (Ctrl+C to abort)...")
	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/backtest", "-console", "-config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "backtest exited: %v\n", err)
	}
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%g]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %g\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
