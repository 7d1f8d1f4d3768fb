// goldenkey: daily Korean market movers with sector grouping.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/goldenkey/api"
	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/llm"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/internal/scan"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "goldenkey",
	Short: "Korean market movers grouped by sector",
	Long: `goldenkey scans the KOSPI and KOSDAQ volume rankings, keeps the
strongest movers, tags each with a sector from keyword rules and,
when a model provider is configured, refines the tags from recent
headlines.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		log, err = logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(indicesCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skip config loading.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("goldenkey %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Scan Command ---

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the sector summary",
	Long: `Fetch both volume rankings, filter and rank the movers, tag them by
keyword rules and print the sector summary. With --refine the tags are
refined by a model from each instrument's recent headlines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		refine, _ := cmd.Flags().GetBool("refine")
		asJSON, _ := cmd.Flags().GetBool("json")
		out, _ := cmd.Flags().GetString("out")
		names, _ := cmd.Flags().GetStringSlice("market")
		markets, err := parseMarkets(names)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		var options []scan.Option
		if len(markets) > 0 {
			options = append(options, scan.WithMarkets(markets...))
		}
		p, err := scan.NewFromConfig(ctx, cfg, log, options...)
		if err != nil {
			return err
		}

		sess, err := p.Scan(ctx, nil)
		if err != nil {
			return err
		}
		if refine {
			if !p.CanRefine() {
				fmt.Fprintln(os.Stderr, "⚠️  no model provider key is set; showing rule tags only")
			}
			if sess, err = p.Refine(ctx, sess); err != nil {
				return err
			}
		}

		if out != "" {
			if err := writeSessionFile(out, sess); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "session written to %s\n", out)
		}
		if asJSON {
			return printJSON(sess)
		}
		printSession(os.Stdout, sess)
		return nil
	},
}

func init() {
	scanCmd.Flags().Bool("refine", false, "refine sector tags with the configured model")
	scanCmd.Flags().Bool("json", false, "print the session as JSON")
	scanCmd.Flags().String("out", "", "also write the session as JSON to this file")
	scanCmd.Flags().StringSlice("market", nil, "restrict the scan to these boards (kospi, kosdaq)")
}

// parseMarkets maps --market values to boards, dropping repeats.
func parseMarkets(names []string) ([]models.Market, error) {
	var out []models.Market
	for _, name := range names {
		m, ok := models.ParseMarket(name)
		if !ok {
			return nil, fmt.Errorf("unknown market %q (want kospi or kosdaq)", name)
		}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- Indices Command ---

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "Resolve the configured market indices and theme ETFs",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()

		p, err := scan.NewFromConfig(ctx, cfg, log)
		if err != nil {
			return err
		}
		quotes := p.ResolveIndices(ctx)
		themes := p.ResolveThemes(ctx)
		if asJSON {
			return printJSON(map[string]any{"indices": quotes, "themes": themes})
		}
		printIndices(os.Stdout, quotes)
		if len(themes) > 0 {
			fmt.Println()
			printThemes(os.Stdout, themes)
		}
		return nil
	},
}

func init() {
	indicesCmd.Flags().Bool("json", false, "print as JSON")
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news [name]",
	Short: "Show recent headlines for one instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := scan.NewFromConfig(ctx, cfg, log)
		if err != nil {
			return err
		}
		fmt.Printf("📰 %s\n", args[0])
		for _, h := range p.News(ctx, args[0]) {
			fmt.Printf("  • %s\n", h)
		}
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		refine, _ := cmd.Flags().GetBool("refine")

		ctx, cancel := signalContext()
		defer cancel()

		p, err := scan.NewFromConfig(ctx, cfg, log)
		if err != nil {
			return err
		}
		api.Version = version
		srv := api.NewServer(cfg, p, log)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx, addr) })
		if interval > 0 {
			g.Go(func() error { return scanLoop(ctx, srv, interval, refine) })
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().Duration("interval", 0, "run a scan on this interval in the background (0 disables)")
	serveCmd.Flags().Bool("refine", false, "refine background scans with the configured model")
}

// scanLoop runs a scan immediately and then on every tick until ctx is done.
func scanLoop(ctx context.Context, srv *api.Server, interval time.Duration, refine bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if sess, err := srv.RunScan(ctx, refine); err != nil {
			log.WithError(err).Warn("background scan skipped")
		} else {
			log.WithFields(logrus.Fields{"session": sess.ID, "quotes": len(sess.Quotes)}).Info("background scan done")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowKST()
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  goldenkey System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus(now))
		fmt.Printf("  Time (KST):    %s\n", utils.FormatDateTimeKST(now))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    Merge Policy:  %s\n", cfg.Scan.MergePolicy)
		fmt.Printf("    Min Change:    %.1f%%  Top N: %d\n", cfg.Scan.MinChangePercent, cfg.Scan.TopN)
		fmt.Printf("    Rules:         %d  Overrides: %d\n", len(cfg.Scan.Rules), len(cfg.Scan.Overrides))
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if config.AnyLLMKey(cfg) {
			ping, _ := cmd.Flags().GetBool("ping")
			if ping {
				fmt.Println()
				fmt.Println("  Providers:")
				printProviderHealth(cmd.Context())
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "send a minimal request to each configured provider")
}

func printProviderHealth(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	router, err := llm.NewRouterFromConfig(ctx, cfg.LLM, log)
	if err != nil {
		fmt.Printf("    ❌ %v\n", err)
		return
	}
	health := router.HealthCheck(ctx)
	for _, name := range router.ProviderNames() {
		status := "✅ ok"
		if err := health[name]; err != nil {
			status = "❌ " + err.Error()
		}
		fmt.Printf("    %-25s %s\n", name+":", status)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSessionFile(path string, sess *scan.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
