package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// DailyResult summarizes a daily run.
type DailyResult struct {
	RunID     string        `json:"run_id"`
	Date      string        `json:"date"`
	Succeeded []string      `json:"succeeded"`
	Failed    []UnitFailure `json:"failed"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// RunDaily ingests today minus DailyLagDays for every configured location.
// Locations run concurrently up to Concurrency; each outcome lands in the
// location's own slot so the result follows configuration order.
func (p *Pipeline) RunDaily(ctx context.Context) DailyResult {
	defer p.runStarted(domain.ModeDaily)()

	date := domain.Today().AddDate(0, 0, -p.opts.DailyLagDays)
	return p.runDay(ctx, date)
}

func (p *Pipeline) runDay(ctx context.Context, date time.Time) DailyResult {
	runID := uuid.NewString()
	day := domain.FormatDate(date)
	p.logger.Info("daily ingestion started", "run_id", runID, "date", day, "locations", len(p.locations))

	errs := make([]error, len(p.locations))
	started := make([]bool, len(p.locations))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, loc := range p.locations {
		// Cancellation stops new units; units already running finish.
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			errs[i] = p.ingestUnit(ctx, runID, domain.ModeDaily, loc, date)
			return nil
		})
	}
	_ = g.Wait()

	res := DailyResult{RunID: runID, Date: day, Succeeded: []string{}, Failed: []UnitFailure{}}
	for i, loc := range p.locations {
		switch {
		case !started[i]:
			res.Cancelled = true
			res.Failed = append(res.Failed, UnitFailure{Location: loc.Name, Date: day, Error: "cancelled before start"})
		case errs[i] != nil:
			res.Failed = append(res.Failed, UnitFailure{Location: loc.Name, Date: day, Error: errs[i].Error()})
		default:
			res.Succeeded = append(res.Succeeded, loc.Name)
		}
	}

	p.logger.Info("daily ingestion finished", "run_id", runID, "date", day,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed), "cancelled", res.Cancelled)
	p.publish(context.WithoutCancel(ctx), domain.IngestEvent{
		Type:       domain.EventRunCompleted,
		RunID:      runID,
		Mode:       domain.ModeDaily,
		Date:       day,
		Succeeded:  len(res.Succeeded),
		Failed:     len(res.Failed),
		FailedKeys: failureKeys(res.Failed),
		Cancelled:  res.Cancelled,
	})
	return res
}

func failureKeys(fs []UnitFailure) []string {
	if len(fs) == 0 {
		return nil
	}
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Location + "/" + f.Date
	}
	return keys
}
