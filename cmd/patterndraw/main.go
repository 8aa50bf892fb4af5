package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/robfig/cron/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"patterndraw/internal/capture"
	"patterndraw/internal/chart"
	"patterndraw/internal/criteria"
	"patterndraw/internal/search"
	"patterndraw/internal/symbols"
	"patterndraw/internal/warmer"
	"patterndraw/internal/web"
	"patterndraw/internal/workspace"
	"patterndraw/pkg/model"
)

// workspaces idle this long are closed by the sweeper
const workspaceIdle = 2 * time.Hour

var (
	cfgFile   string
	format    string
	symbol    string
	interval  string
	period    string
	outFile   string
	universe  string
	olderThan time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "patterndraw",
		Short: "Draw a price pattern on a BIST chart and search for similar ones",
		Long: `Patterndraw serves the pattern-drawing dashboard API: mark alternating
troughs and peaks on a candle chart, derive percentage criteria from them and
search the analysis API for stocks that moved the same way.

Examples:
  patterndraw serve
  patterndraw derive 2024-01-02:100 2024-02-01:150 2024-03-01:120
  patterndraw search --symbol THYAO 2024-01-02:100 2024-02-01:150
  patterndraw prefetch --universe bist100`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API",
		RunE:  runServe,
	}

	deriveCmd := &cobra.Command{
		Use:   "derive DATE:PRICE...",
		Short: "Derive search criteria from points, offline",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDerive,
	}
	deriveCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	searchCmd := &cobra.Command{
		Use:   "search DATE:PRICE...",
		Short: "Search for patterns like the one through the points",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSearch,
	}
	searchCmd.Flags().StringVar(&symbol, "symbol", "", "symbol the pattern was drawn on")
	searchCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	searchCmd.MarkFlagRequired("symbol")

	rangeCmd := &cobra.Command{
		Use:   "range START END",
		Short: "Find periods similar to a date range of a symbol",
		Args:  cobra.ExactArgs(2),
		RunE:  runRange,
	}
	rangeCmd.Flags().StringVar(&symbol, "symbol", "", "symbol the range is taken from")
	rangeCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	rangeCmd.MarkFlagRequired("symbol")

	prefetchCmd := &cobra.Command{
		Use:   "prefetch [SYMBOL...]",
		Short: "Fill the candle cache",
		RunE:  runPrefetch,
	}
	prefetchCmd.Flags().StringVar(&universe, "universe", "", "symbol universe: bist100, bist, test (default from config)")
	prefetchCmd.Flags().StringVar(&interval, "interval", "", "candle interval (default from config)")
	prefetchCmd.Flags().StringVar(&period, "period", "", "look-back period (default from config)")

	renderCmd := &cobra.Command{
		Use:   "render [DATE:PRICE...]",
		Short: "Write a chart page with the points drawn over it",
		RunE:  runRender,
	}
	renderCmd.Flags().StringVar(&symbol, "symbol", "", "symbol to chart")
	renderCmd.Flags().StringVar(&interval, "interval", "", "candle interval (default from config)")
	renderCmd.Flags().StringVar(&period, "period", "", "look-back period (default from config)")
	renderCmd.Flags().StringVar(&outFile, "out", "chart.html", "output file")
	renderCmd.MarkFlagRequired("symbol")

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the candle store",
		RunE:  runCacheList,
	}
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached series older than --older",
		RunE:  runCachePrune,
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older", 30*24*time.Hour, "age of series to delete")
	cacheCmd.AddCommand(pruneCmd)

	symbolsCmd := &cobra.Command{
		Use:   "symbols",
		Short: "List selectable symbols",
		RunE:  runSymbols,
	}
	symbolsCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	rootCmd.AddCommand(serveCmd, deriveCmd, searchCmd, rangeCmd, prefetchCmd, renderCmd, cacheCmd, symbolsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := workspace.NewManager(a.candles, a.orchestrator, a.workspaceOptions())
	defer manager.CloseAll()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 10m", func() { manager.Sweep(workspaceIdle) }); err != nil {
		return fmt.Errorf("register sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if a.cfg.Warm.Schedule != "" {
		w := warmer.NewWarmer(a.candles, a.cfg.Chart.Interval, a.cfg.Chart.Period, a.cfg.Warm.Workers, a.cfg.Warm.Timeout)
		u := symbols.Universe(a.cfg.Warm.Universe)
		c, err := w.Schedule(ctx, a.cfg.Warm.Schedule, func(context.Context) []string {
			return symbols.GetUniverse(u)
		})
		if err != nil {
			return err
		}
		defer c.Stop()
	}

	srv := web.NewServer(manager, a.symbols)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[WEB] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parsePoints reads DATE:PRICE arguments into waypoints of alternating kind,
// first a trough, the way the drawing chart captures them
func parsePoints(args []string) ([]capture.Waypoint, error) {
	m := capture.NewMachine(nil)
	m.SetActive(true)
	for _, arg := range args {
		i := strings.LastIndex(arg, ":")
		if i <= 0 {
			return nil, fmt.Errorf("point %q: want DATE:PRICE", arg)
		}
		t, err := parseTime(arg[:i])
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", arg, err)
		}
		price, err := strconv.ParseFloat(arg[i+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", arg, err)
		}
		if _, err := m.Capture(t.Unix(), price); err != nil {
			return nil, fmt.Errorf("point %q: %w", arg, err)
		}
	}
	return m.Waypoints(), nil
}

func parseTime(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func runDerive(cmd *cobra.Command, args []string) error {
	wps, err := parsePoints(args)
	if err != nil {
		return err
	}
	d, err := criteria.Derive(wps)
	if err != nil {
		return err
	}
	if format == "json" {
		return outputJSON(map[string]interface{}{
			"points":   wps,
			"ratios":   d.Ratios,
			"criteria": d.Criteria,
			"request":  d.Map(),
		})
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "From", "To", "Change", "Direction", "Min", "Max"}),
	)
	for i, r := range d.Ratios {
		c := d.Criteria[i]
		table.Append([]string{
			strconv.Itoa(r.Position),
			r.FromKind.Label(),
			r.ToKind.Label(),
			fmt.Sprintf("%+.2f%%", r.PercentChange),
			string(r.Direction),
			fmt.Sprintf("%.2f", c.Min),
			fmt.Sprintf("%.2f", c.Max),
		})
	}
	return table.Render()
}

func runSearch(cmd *cobra.Command, args []string) error {
	wps, err := parsePoints(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Search.Timeout)
	defer cancel()

	outcome, err := a.orchestrator.Search(ctx, search.Query{
		Symbol:        symbols.Normalize(symbol),
		Waypoints:     wps,
		MinSimilarity: a.cfg.Search.MinSimilarity,
		Limit:         a.cfg.Search.Limit,
	})
	if err != nil {
		return err
	}
	if format == "json" {
		return outputJSON(outcome)
	}
	if outcome.Fallback {
		fmt.Printf("Pattern search failed (%s); showing date-range matches instead.\n\n", outcome.PrimaryErr)
	}
	return outputResults(outcome.Results)
}

func runRange(cmd *cobra.Command, args []string) error {
	start, err := parseTime(args[0])
	if err != nil {
		return err
	}
	end, err := parseTime(args[1])
	if err != nil {
		return err
	}
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Search.Timeout)
	defer cancel()

	results, err := a.orchestrator.SearchRange(ctx, symbols.Normalize(symbol), start, end, a.cfg.Search.MinSimilarity, a.cfg.Search.Limit)
	if err != nil {
		return err
	}
	if format == "json" {
		return outputJSON(results)
	}
	return outputResults(results)
}

func outputResults(results []model.SimilarResult) error {
	if len(results) == 0 {
		fmt.Println("No similar patterns found.")
		return nil
	}
	fmt.Printf("Found %d similar patterns:\n\n", len(results))

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Similarity", "Corr", "Start", "End", "Price", "Change", "Match"}),
	)
	for _, r := range results {
		match := r.MatchType
		if r.PatternProgress != nil {
			match = fmt.Sprintf("%s %.0f%%", match, *r.PatternProgress)
		}
		table.Append([]string{
			r.Symbol,
			fmt.Sprintf("%.1f%%", r.SimilarityScore*100),
			fmt.Sprintf("%.2f", r.Correlation),
			r.StartDate,
			r.EndDate,
			fmt.Sprintf("%.2f", r.CurrentPrice),
			fmt.Sprintf("%+.1f%%", r.PriceChangePercent),
			strings.TrimSpace(match),
		})
	}
	return table.Render()
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	list := args
	if len(list) == 0 {
		u := universe
		if u == "" {
			u = a.cfg.Warm.Universe
		}
		list = symbols.GetUniverse(symbols.Universe(u))
	}
	stocks := symbols.LoadSymbols(list)
	if len(stocks) == 0 {
		return fmt.Errorf("no symbols to prefetch")
	}
	syms := make([]string, len(stocks))
	for i, s := range stocks {
		syms[i] = s.Symbol
	}

	iv, p := interval, period
	if iv == "" {
		iv = a.cfg.Chart.Interval
	}
	if p == "" {
		p = a.cfg.Chart.Period
	}
	w := warmer.NewWarmer(a.candles, iv, p, a.cfg.Warm.Workers, a.cfg.Warm.Timeout)

	bar := progressbar.NewOptions(len(syms),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Fetching"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	w.SetProgressCallback(func(done, total int) {
		bar.Set(done)
	})

	result, err := w.Warm(ctx, syms)
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Cached %d/%d symbols in %s\n", result.Warmed, result.Total, result.Duration.Round(time.Second))
	if len(result.Failed) > 0 {
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Symbol", "Error"}),
		)
		for sym, ferr := range result.Failed {
			table.Append([]string{sym, ferr.Error()})
		}
		return table.Render()
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	wps, err := parsePoints(args)
	if err != nil {
		return err
	}
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	iv, p := interval, period
	if iv == "" {
		iv = a.cfg.Chart.Interval
	}
	if p == "" {
		p = a.cfg.Chart.Period
	}
	sym := symbols.Normalize(symbol)
	candles, err := a.candles.GetCandles(cmd.Context(), sym, iv, p)
	if err != nil {
		return err
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := chart.Render(f, sym+" "+iv, candles, capture.OverlayOf(wps)); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d candles, %d points)\n", outFile, len(candles), len(wps))
	return nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.store == nil {
		return fmt.Errorf("store.path is not configured")
	}

	series, err := a.store.Series(cmd.Context())
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Println("Candle store is empty.")
		return nil
	}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Interval", "Period", "Candles", "Fetched"}),
	)
	for _, s := range series {
		table.Append([]string{
			s.Symbol,
			s.Interval,
			s.Period,
			strconv.Itoa(s.Candles),
			s.FetchedAt.Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.store == nil {
		return fmt.Errorf("store.path is not configured")
	}

	n, err := a.store.Prune(cmd.Context(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d series older than %s\n", n, olderThan)
	return nil
}

func runSymbols(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	list := a.symbols.Load(cmd.Context())
	if format == "json" {
		return outputJSON(list)
	}
	for _, s := range list {
		fmt.Println(s)
	}
	fmt.Printf("\n%d symbols\n", len(list))
	return nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
