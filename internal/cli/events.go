package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/missoula-scraper/internal/entity"
	"github.com/user/missoula-scraper/internal/usecase"
	"github.com/user/missoula-scraper/pkg/utils"
)

const defaultWindow = 7 * 24 * time.Hour

func NewEventsCmd(deps *Dependencies) *cobra.Command {
	var (
		fromFlag  string
		toFlag    string
		durations bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Scrape meetings in a date window and print ingestion events",
		Example: `  scraper events --from 2022-01-01 --to 2022-12-31
  scraper events --from 2022-03-01T00:00:00-07:00 --to 2022-03-31 --durations --output march.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(deps)
			if err != nil {
				return err
			}

			from, to, err := resolveWindow(fromFlag, toFlag, deps.Now(), cfg.Location())
			if err != nil {
				return err
			}

			log, err := stderrLogger(deps, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Events.Gather(cmd.Context(), from, to, usecase.ScrapeOptions{CollectDurations: durations})
			if err != nil {
				return err
			}

			out := deps.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeEvents(out, res.Events); err != nil {
				return err
			}

			if res.Durations != nil {
				writeDurationReport(deps.Stderr, res.Durations)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "window start, RFC 3339 or YYYY-MM-DD (default 7 days ago)")
	cmd.Flags().StringVar(&toFlag, "to", "", "window end, RFC 3339 or YYYY-MM-DD for the whole day (default now)")
	cmd.Flags().BoolVar(&durations, "durations", false, "also read recording lengths and report totals on stderr")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write events to this file instead of stdout")

	return cmd
}

// resolveWindow fills in missing bounds relative to now.
func resolveWindow(fromFlag, toFlag string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	to := now
	if toFlag != "" {
		t, err := utils.ParseBound(toFlag, loc, true)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		to = t
	}

	from := to.Add(-defaultWindow)
	if fromFlag != "" {
		t, err := utils.ParseBound(fromFlag, loc, false)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		from = t
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: --to is before --from", usecase.ErrInvalidWindow)
	}
	return from, to, nil
}

func writeEvents(w io.Writer, events []entity.EventIngestionModel) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	return nil
}

func writeDurationReport(w io.Writer, r *entity.DurationReport) {
	fmt.Fprintf(w, "Meetings with a duration: %d\n", r.Count)
	fmt.Fprintf(w, "Total duration: %s\n", r.Total)
	fmt.Fprintf(w, "Average per week (week %d of the year): %s\n", r.WeekOfYear, r.AveragePerWeek)
}
