package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lifely/lifely/internal/batch"
	"github.com/lifely/lifely/internal/calendar"
	"github.com/lifely/lifely/internal/models"
	"github.com/lifely/lifely/internal/normalize"
	"github.com/lifely/lifely/internal/pipeline"
)

type runOptions struct {
	year    int
	email   string
	input   string
	output  string
	refresh bool
	summary bool
	quiet   bool
}

func runCmd() *cobra.Command {
	opts := runOptions{year: time.Now().Year() - 1}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the year-in-review",
		Long: `Reads events from --input (a JSON or .ics export) or, when no input is
given, from Google Calendar using the token file in LIFELY_GOOGLE_TOKEN_FILE.
Fetched events are kept under the data directory; pass --refresh to fetch
again.

Without OPENAI_API_KEY only the basic statistics are produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runYear(ctx, cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.year, "year", opts.year, "calendar year to review")
	cmd.Flags().StringVar(&opts.email, "email", "", "your calendar email, excluded from friends")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "events file (.json or .ics)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "where to write the result JSON")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "fetch from the calendar provider even if a local copy exists")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print a text summary instead of JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")

	return cmd
}

func runYear(ctx context.Context, cmd *cobra.Command, opts runOptions) error {
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	source, email, err := a.source(ctx, opts)
	if err != nil {
		return err
	}

	a.logger.Info("loading events", "source", source.Name(), "year", opts.year)
	raw, err := source.Fetch(ctx, opts.year)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	loc, err := normalize.LoadLocation(a.cfg.Pipeline.Timezone)
	if err != nil {
		return err
	}

	cache, err := a.cache(ctx)
	if err != nil {
		return err
	}
	gen, err := a.generator()
	if err != nil {
		return err
	}

	pc := a.cfg.Pipeline
	p := pipeline.New(pipeline.Config{
		Year:            opts.year,
		UserEmail:       email,
		Location:        loc,
		MinFriendEvents: pc.MinFriendEvents,
		TopN:            pc.TopN,
		LocationBatch:   batch.Config{Size: pc.LocationBatchSize, Workers: pc.Workers, Pause: pc.BatchPause},
		ClassifyBatch:   batch.Config{Size: pc.ClassifyBatchSize, Workers: pc.Workers, Pause: pc.BatchPause},
	}, gen, cache, a.logger, a.metrics)
	if gen != nil {
		resolver, err := a.places(ctx)
		if err != nil {
			return err
		}
		p.WithPlaces(resolver)
	}

	var progress models.ProgressFunc
	if !opts.quiet {
		progress = progressPrinter(cmd.ErrOrStderr())
	}

	result, err := p.Run(ctx, raw, progress)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	if opts.summary {
		return writeSummary(out, result)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// source picks the event source and the email identifying the user.
func (a *app) source(ctx context.Context, opts runOptions) (calendar.Source, string, error) {
	if opts.input != "" {
		return calendar.FileSource{Path: opts.input}, opts.email, nil
	}

	cc := a.cfg.Calendar
	if cc.TokenFile == "" {
		return nil, "", errors.New("no event source: pass --input or set LIFELY_GOOGLE_TOKEN_FILE")
	}

	google, err := calendar.NewGoogleSource(ctx, cc.TokenFile, cc.CalendarID, a.logger)
	if err != nil {
		return nil, "", err
	}

	email := opts.email
	if email == "" {
		if email, err = google.UserEmail(ctx); err != nil {
			a.logger.Warn("could not determine calendar owner, self attendance will rely on the self flag", "error", err)
		}
	}

	return calendar.CachedSource{Source: google, DataDir: cc.DataDir, Refresh: opts.refresh}, email, nil
}

// progressPrinter redraws a single status line on a terminal and prints one
// line per update otherwise.
func progressPrinter(w io.Writer) models.ProgressFunc {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func(p models.Progress) {
			fmt.Fprintf(w, "[%3d%%] %-20s %s\n", p.Percent, p.Phase, p.Message)
		}
	}
	return func(p models.Progress) {
		fmt.Fprintf(w, "\r\033[K[%3d%%] %-20s %s", p.Percent, p.Phase, p.Message)
		if p.Phase == models.PhaseComplete {
			fmt.Fprintln(w)
		}
	}
}

func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}
