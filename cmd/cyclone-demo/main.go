// Command cyclone-demo analyses cyclone conditions for a set of Indian Ocean
// locations, or a single point, and prints a report per location followed by
// a summary.
//
// Usage:
//
//	go run ./cmd/cyclone-demo
//	go run ./cmd/cyclone-demo -lat -21.1151 -lon 55.5364 -name "La Réunion" -date 2024-01-15
//	go run ./cmd/cyclone-demo -watch 30m
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/i474232898/cyclone-tracker/internal/config"
	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/observability"
	"github.com/i474232898/cyclone-tracker/internal/scheduler"
	"github.com/i474232898/cyclone-tracker/internal/tracker"
	"github.com/i474232898/cyclone-tracker/internal/weather"
	"github.com/i474232898/cyclone-tracker/internal/weather/providers"
)

var presets = []scheduler.WatchLocation{
	{Name: "La Réunion", Latitude: -21.1151, Longitude: 55.5364},
	{Name: "Maurice (Île)", Latitude: -20.1609, Longitude: 57.5012},
	{Name: "Madagascar (Antananarivo)", Latitude: -18.8792, Longitude: 47.5079},
	{Name: "Comores (Moroni)", Latitude: -11.6986, Longitude: 43.2551},
}

func main() {
	lat := flag.Float64("lat", math.NaN(), "latitude of a single location to analyse")
	lon := flag.Float64("lon", math.NaN(), "longitude of a single location to analyse")
	name := flag.String("name", "", "display name for -lat/-lon")
	date := flag.String("date", "", "historical analysis date (YYYY-MM-DD)")
	watch := flag.Duration("watch", 0, "repeat the analysis at this interval until interrupted")
	flag.Parse()

	if math.IsNaN(*lat) != math.IsNaN(*lon) {
		fmt.Fprintln(os.Stderr, "-lat and -lon must be given together")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, *lat, *lon, *name, *date, *watch); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, lat, lon float64, name, date string, watch time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := observability.NewLogger(cfg.LogLevel, "text")

	detector, err := cyclone.NewDetector(cfg.Thresholds())
	if err != nil {
		fmt.Fprintf(os.Stderr, "thresholds: %v\n", err)
		return 1
	}

	forecastFetcher := providers.NewFetcher(cfg.FetcherConfig("forecast"), providers.WithLogger(log))
	defer forecastFetcher.Close()

	var marine weather.MarineProvider
	if cfg.MarineEnabled {
		marineFetcher := providers.NewFetcher(cfg.FetcherConfig("marine"), providers.WithLogger(log))
		defer marineFetcher.Close()
		marine = providers.NewMarineProvider(marineFetcher, cfg.MarineAPIURL)
	}

	service := tracker.NewService(
		providers.NewOpenMeteoProvider(forecastFetcher, cfg.WeatherAPIURL),
		marine,
		detector,
		tracker.WithForecastDays(cfg.ForecastDays),
		tracker.WithLogger(log),
	)

	if !math.IsNaN(lat) {
		return analyseOne(ctx, service, tracker.Request{
			Latitude:     &lat,
			Longitude:    &lon,
			LocationName: name,
			AnalysisDate: date,
		})
	}

	fmt.Println(banner("CYCLONE DETECTION - INDIAN OCEAN"))
	sched := scheduler.New(presets, watch, service,
		scheduler.WithLogger(log),
		scheduler.WithResultHandler(func(r scheduler.Result) { printResult(os.Stdout, r) }),
		scheduler.WithRunHandler(func(rs []scheduler.Result) { printSummary(os.Stdout, rs) }))

	if watch <= 0 {
		sched.RunOnce(ctx)
		return 0
	}

	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: %v\n", err)
		return 1
	}
	<-ctx.Done()
	sched.Stop()
	fmt.Println("\n[!] Interrupted")
	return 0
}

func analyseOne(ctx context.Context, service *tracker.Service, req tracker.Request) int {
	a, err := service.Analyze(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[X] %v\n", err)
		return 1
	}
	printReport(os.Stdout, a)
	return 0
}

func printResult(w io.Writer, r scheduler.Result) {
	if r.Err != nil {
		fmt.Fprintf(w, "\n[X] %s: %v\n", r.Location.Name, r.Err)
		return
	}
	printReport(w, r.Analysis)
}

func printReport(w io.Writer, a tracker.Analysis) {
	res := a.Result
	c := res.Conditions

	fmt.Fprintln(w)
	fmt.Fprintln(w, banner("CYCLONE ANALYSIS - "+a.LocationName))
	fmt.Fprintf(w, "Coordinates: %v, %v\n", res.Location.Latitude, res.Location.Longitude)
	fmt.Fprintf(w, "Analysis date: %s (%s)\n", res.Details.AnalysisDate, res.Details.AnalysisType)
	fmt.Fprintf(w, "\nCATEGORY: %s\n", res.Category)
	fmt.Fprintf(w, "Severity: %.2f%%\n", res.SeverityScore*100)

	fmt.Fprintln(w, "\nCONDITIONS:")
	fmt.Fprintf(w, "  %s Sea surface temperature: %.1fC (threshold: >%.1fC)%s\n",
		mark(c.SST), c.SST.Value, c.SST.Threshold, estimated(c.SST))
	fmt.Fprintf(w, "  %s Surface pressure: %.1f hPa (threshold: <%.1f hPa)\n",
		mark(c.Pressure), c.Pressure.Value, c.Pressure.Threshold)
	fmt.Fprintf(w, "  %s Wind speed: %.1f km/h (threshold: >%.1f km/h)\n",
		mark(c.Wind), c.Wind.Value, c.Wind.Threshold)
	fmt.Fprintf(w, "  %s Wind gusts: %.1f km/h (threshold: >=%.1f km/h)%s\n",
		mark(c.WindGusts), c.WindGusts.Value, c.WindGusts.Threshold, estimated(c.WindGusts))

	fmt.Fprintf(w, "\nRISK: %s - %s\n", a.Risk.Level, a.Risk.Message)
	fmt.Fprintln(w, "\nTEMPERATURES:")
	fmt.Fprintf(w, "  Maximum: %.1fC\n", res.Details.TemperatureMax)
	fmt.Fprintf(w, "  Minimum: %.1fC\n", res.Details.TemperatureMin)
	fmt.Fprintln(w, rule())
}

func printSummary(w io.Writer, results []scheduler.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, banner("ANALYSIS SUMMARY"))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		res := r.Analysis.Result
		fmt.Fprintf(w, "%s %s: %s (Severity: %.2f%%)\n",
			severityMarker(res.SeverityScore), r.Location.Name, res.Category, res.SeverityScore*100)
	}
	fmt.Fprintln(w, rule())
}

func severityMarker(score float64) string {
	switch {
	case score > 0.7:
		return "[HIGH]"
	case score > 0.4:
		return "[MED]"
	default:
		return "[LOW]"
	}
}

func mark(c cyclone.ConditionCheck) string {
	if c.Met {
		return "[OK]"
	}
	return "[NO]"
}

func estimated(c cyclone.ConditionCheck) string {
	if c.Estimated {
		return " (estimated)"
	}
	return ""
}

func rule() string {
	return "======================================================================"
}

func banner(title string) string {
	return rule() + "\n" + title + "\n" + rule()
}
