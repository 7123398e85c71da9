package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuadavidthomas/meteofetch/internal/config"
	"github.com/joshuadavidthomas/meteofetch/internal/display"
	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/geocode"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/prompt"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [location...]",
	Short: "Fetch daily weather for one or more locations",
	Long: `Fetch daily weather records for each location over an inclusive date range.

A location is a saved name (see 'meteofetch locations'), a "lat,lon" pair,
or a place name looked up online. Use --lat/--lon for a single point.`,
	Example: `  meteofetch fetch Budapest --start 2024-01-01 --end 2024-01-31
  meteofetch fetch --lat 47.5 --lon 19.04 --days 7 --provider meteostat
  meteofetch fetch Vienna Prague --days 30 --json`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Float64("lat", 0, "Latitude of a single point")
	fetchCmd.Flags().Float64("lon", 0, "Longitude of a single point")
	fetchCmd.Flags().String("start", "", "First day (YYYY-MM-DD)")
	fetchCmd.Flags().String("end", "", "Last day, inclusive (YYYY-MM-DD); defaults to --start, or yesterday with --days")
	fetchCmd.Flags().IntP("days", "d", 0, "Number of days; counts back from --end or yesterday when --start is not given")
	fetchCmd.Flags().StringP("use-case", "u", "", "Routing use case: "+useCaseList())
	fetchCmd.Flags().StringP("provider", "p", "", "Provider to use (auto, open-meteo, meteostat); defaults to config")
}

func useCaseList() string {
	var names []string
	for _, uc := range models.UseCases() {
		names = append(names, string(uc))
	}
	return strings.Join(names, ", ")
}

// now is the clock used for default date ranges.
var now = time.Now

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	reqs, err := buildRequests(ctx, cmd, args)
	if err != nil {
		return err
	}

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.close(ctx); err != nil {
			logger.Warn("shutting down", "err", err)
		}
	}()

	var notices noticeLog
	unsubscribe := eng.coord.Subscribe(notices.observe)
	defer unsubscribe()

	handles := make([]*fetch.Handle, 0, len(reqs))
	for _, req := range reqs {
		h, err := eng.coord.Submit(req)
		if err != nil {
			eng.coord.CancelAll()
			return err
		}
		logger.Debug("submitted", "task", h.ID(), "lat", req.Latitude, "lon", req.Longitude, "window", fmt.Sprintf("%s..%s", req.Start, req.End))
		handles = append(handles, h)
	}

	stop := context.AfterFunc(ctx, func() { eng.coord.CancelAll() })
	defer stop()

	var outcomes []fetch.Outcome
	if display.SpinnerShouldShow(quiet, jsonOutput, !isTerminal()) {
		tasks := make([]display.SpinnerTask, len(handles))
		for i, h := range handles {
			tasks[i] = display.SpinnerTask{ID: h.ID(), Label: requestLabel(h.Request())}
		}
		err := display.SpinnerRun(tasks, func() { eng.coord.CancelAll() }, func(send func(fetch.Event)) {
			unsub := eng.coord.Subscribe(send)
			defer unsub()
			outcomes = collectOutcomes(handles, send)
		})
		if err != nil {
			return fmt.Errorf("spinner error: %w", err)
		}
	} else {
		outcomes = collectOutcomes(handles, nil)
	}

	if jsonOutput {
		return display.OutputOutcomesJSON(outWriter, outcomes)
	}

	for i, o := range outcomes {
		if quiet {
			out("%s\t%s\t%s\t%d\n", requestLabel(o.Request), o.Status, o.Provider, len(o.Records))
			continue
		}
		if i > 0 {
			outln()
		}
		_, _ = fmt.Fprint(outWriter, display.RenderOutcome(o, tableOptions("")))
	}
	if !quiet {
		for _, n := range notices.list() {
			noticeln(n)
		}
	}

	return fetchError(ctx, outcomes)
}

// collectOutcomes waits for every handle in submission order. Each result
// is also forwarded to send, since the subscriber may have missed it.
func collectOutcomes(handles []*fetch.Handle, send func(fetch.Event)) []fetch.Outcome {
	outcomes := make([]fetch.Outcome, len(handles))
	for i, h := range handles {
		o, _ := h.Wait(context.Background())
		outcomes[i] = o
		if send != nil {
			send(fetch.Event{TaskID: h.ID(), Kind: fetch.EventResult, Outcome: &o})
		}
	}
	return outcomes
}

func fetchError(ctx context.Context, outcomes []fetch.Outcome) error {
	failed, cancelled := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case fetch.StatusFailed:
			failed++
		case fetch.StatusCancelled:
			cancelled++
		}
	}
	switch {
	case cancelled > 0 && ctx.Err() != nil:
		return ctx.Err()
	case failed == 1 && len(outcomes) == 1:
		return outcomes[0].Err
	case failed > 0:
		return fmt.Errorf("%d of %d fetches failed", failed, len(outcomes))
	}
	return nil
}

func requestLabel(req models.FetchRequest) string {
	if req.Label != "" {
		return req.Label
	}
	return fmt.Sprintf("%.4f,%.4f", req.Latitude, req.Longitude)
}

func buildRequests(ctx context.Context, cmd *cobra.Command, args []string) ([]models.FetchRequest, error) {
	cfg := config.Get()
	flags := cmd.Flags()

	startStr, _ := flags.GetString("start")
	endStr, _ := flags.GetString("end")
	days, _ := flags.GetInt("days")
	var err error
	if startStr == "" && days == 0 && isTerminal() && !jsonOutput {
		if startStr, endStr, err = promptDates(endStr); err != nil {
			return nil, err
		}
	}
	window, err := parseWindow(startStr, endStr, days, models.DateOf(now().UTC()))
	if err != nil {
		return nil, err
	}

	ucStr, _ := flags.GetString("use-case")
	uc, err := models.ParseUseCase(ucStr)
	if err != nil {
		return nil, err
	}
	if !flags.Changed("use-case") && len(args) > 1 {
		uc = models.UseCaseMultiLocation
	}

	choice, err := cfg.DefaultChoice()
	if err != nil {
		return nil, fmt.Errorf("routing.default_provider: %w", err)
	}
	if flags.Changed("provider") {
		p, _ := flags.GetString("provider")
		if choice, err = models.ParseProviderChoice(p); err != nil {
			return nil, err
		}
	}

	base := models.FetchRequest{Start: window.Start, End: window.End, UseCase: uc, Provider: choice}
	var reqs []models.FetchRequest

	if flags.Changed("lat") || flags.Changed("lon") {
		if !flags.Changed("lat") || !flags.Changed("lon") {
			return nil, errors.New("--lat and --lon must be given together")
		}
		req := base
		req.Latitude, _ = flags.GetFloat64("lat")
		req.Longitude, _ = flags.GetFloat64("lon")
		reqs = append(reqs, req)
	}

	if len(args) > 0 {
		resolver := newResolver(cfg)
		for _, name := range args {
			coords, err := resolver.Resolve(ctx, name)
			if err != nil {
				if errors.Is(err, geocode.ErrNotFound) {
					return nil, fmt.Errorf("unknown location %q", name)
				}
				return nil, fmt.Errorf("resolving %q: %w", name, err)
			}
			req := base
			req.Latitude, req.Longitude = coords.Latitude, coords.Longitude
			req.Label = coords.Name
			if req.Label == "" {
				req.Label = name
			}
			reqs = append(reqs, req)
		}
	}

	if len(reqs) == 0 {
		return nil, errors.New("specify a location or --lat and --lon")
	}
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

// promptDates asks for the range when neither --start nor --days was given.
func promptDates(end string) (string, string, error) {
	start, err := prompt.Default.Input(prompt.InputConfig{
		Title:       "First day",
		Placeholder: "YYYY-MM-DD",
		Validate:    prompt.ValidateDate,
	})
	if err != nil {
		return "", "", err
	}
	if end == "" {
		end, err = prompt.Default.Input(prompt.InputConfig{
			Title:       "Last day (inclusive)",
			Description: "Leave empty for a single day",
			Placeholder: "YYYY-MM-DD",
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return nil
				}
				return prompt.ValidateDate(s)
			},
		})
		if err != nil {
			return "", "", err
		}
	}
	return strings.TrimSpace(start), strings.TrimSpace(end), nil
}

// parseWindow derives the date range from --start, --end and --days.
// today is excluded from defaults since archives lag by at least a day.
func parseWindow(start, end string, days int, today models.Date) (models.Window, error) {
	if days < 0 {
		return models.Window{}, errors.New("--days must be positive")
	}
	var w models.Window
	var err error

	if end != "" {
		if w.End, err = models.ParseDate(end); err != nil {
			return w, err
		}
	}

	switch {
	case start != "":
		if w.Start, err = models.ParseDate(start); err != nil {
			return w, err
		}
		if end == "" {
			w.End = w.Start
			if days > 0 {
				w.End = w.Start.AddDays(days - 1)
			}
		}
	case days > 0:
		if end == "" {
			w.End = today.AddDays(-1)
		}
		w.Start = w.End.AddDays(-(days - 1))
	default:
		return w, errors.New("--start or --days is required")
	}

	if w.End.Before(w.Start) {
		return w, errors.New("end date must not be before start date")
	}
	return w, nil
}

// noticeLog keeps fallback, rejection and quota notices for display after
// the results.
type noticeLog struct {
	mu    sync.Mutex
	lines []string
}

func (n *noticeLog) observe(e fetch.Event) {
	var line string
	switch e.Kind {
	case fetch.EventUsageWarning:
		line = fmt.Sprintf("⚠ %s monthly usage is at %s level", e.Provider, e.Level)
	case fetch.EventProviderValidationFailed:
		line = fmt.Sprintf("⚠ %s cannot be used: %s", e.Provider, e.Reason)
	default:
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.lines {
		if l == line {
			return
		}
	}
	n.lines = append(n.lines, line)
}

func (n *noticeLog) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}
