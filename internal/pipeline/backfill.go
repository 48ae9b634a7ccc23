package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// BackfillRequest asks for every day in [StartDate, EndDate] to be ingested
// for one location. Dates are YYYY-MM-DD. A non-empty Cursor names persisted
// progress to resume from and update.
type BackfillRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Location  string `json:"location"`
	Cursor    string `json:"cursor,omitempty"`
}

// BackfillResult summarizes a backfill run. FailedDays are ISO dates in
// processing order. NextDate is the first unprocessed day when the run was
// cancelled.
type BackfillResult struct {
	RunID          string   `json:"run_id"`
	Location       string   `json:"location"`
	SuccessfulDays int      `json:"successful_days"`
	TotalDays      int      `json:"total_days"`
	FailedDays     []string `json:"failed_days"`
	Cancelled      bool     `json:"cancelled"`
	NextDate       string   `json:"next_date,omitempty"`
	ResumedFrom    string   `json:"resumed_from,omitempty"`
}

// Backfill ingests each day of the request's range in order, pausing
// BackfillDelay between days. Per-day failures are recorded and the run
// continues. Cancellation is checked between days; the day in flight always
// completes.
func (p *Pipeline) Backfill(ctx context.Context, req BackfillRequest) (BackfillResult, error) {
	loc, start, end, err := p.validateBackfill(req)
	if err != nil {
		return BackfillResult{}, err
	}

	res := BackfillResult{RunID: uuid.NewString(), Location: loc.Name, FailedDays: []string{}}

	from := start
	if req.Cursor != "" && p.cursors != nil {
		next, ok, err := p.cursors.Load(ctx, req.Cursor)
		if err != nil {
			return BackfillResult{}, fmt.Errorf("load cursor %q: %w", req.Cursor, err)
		}
		if ok && next.After(start) && !next.After(end) {
			from = next
			res.ResumedFrom = domain.FormatDate(next)
		}
	}

	defer p.runStarted(domain.ModeBackfill)()

	days := domain.DaysInRange(from, end)
	res.TotalDays = len(days)
	p.logger.Info("backfill started", "run_id", res.RunID, "location", loc.Name,
		"start", domain.FormatDate(from), "end", domain.FormatDate(end), "days", len(days))

	next := end.AddDate(0, 0, 1)
	for i, day := range days {
		if i > 0 && !sleepWithContext(ctx, p.opts.BackfillDelay) {
			res.Cancelled = true
			next = day
			break
		}
		if ctx.Err() != nil {
			res.Cancelled = true
			next = day
			break
		}
		if err := p.ingestUnit(ctx, res.RunID, domain.ModeBackfill, loc, day); err != nil {
			res.FailedDays = append(res.FailedDays, domain.FormatDate(day))
			continue
		}
		res.SuccessfulDays++
	}
	if res.Cancelled {
		res.NextDate = domain.FormatDate(next)
	}

	if req.Cursor != "" && p.cursors != nil {
		if err := p.cursors.Save(context.WithoutCancel(ctx), req.Cursor, next); err != nil {
			p.logger.Error("save backfill cursor failed", "cursor", req.Cursor, "next", domain.FormatDate(next), "error", err)
		}
	}

	p.logger.Info("backfill finished", "run_id", res.RunID, "location", loc.Name,
		"successful", res.SuccessfulDays, "total", res.TotalDays,
		"failed", len(res.FailedDays), "cancelled", res.Cancelled)
	failed := make([]string, len(res.FailedDays))
	for i, d := range res.FailedDays {
		failed[i] = loc.Name + "/" + d
	}
	p.publish(context.WithoutCancel(ctx), domain.IngestEvent{
		Type:       domain.EventRunCompleted,
		RunID:      res.RunID,
		Mode:       domain.ModeBackfill,
		Location:   loc.Name,
		Succeeded:  res.SuccessfulDays,
		Failed:     len(res.FailedDays),
		FailedKeys: failed,
		Cancelled:  res.Cancelled,
	})
	return res, nil
}

// AllLocations as a backfill location selects every configured location.
const AllLocations = "all"

// BackfillAll runs Backfill for every configured location in configuration
// order. With a Cursor, each location keeps its own cursor named
// "<cursor>/<partition name>". A cancelled location ends the run and the
// remaining locations are not started.
func (p *Pipeline) BackfillAll(ctx context.Context, req BackfillRequest) ([]BackfillResult, error) {
	if len(p.locations) == 0 {
		return nil, fmt.Errorf("%w: no locations configured", domain.ErrInvalidRequest)
	}
	results := make([]BackfillResult, 0, len(p.locations))
	for _, loc := range p.locations {
		r := req
		r.Location = loc.Name
		if req.Cursor != "" {
			r.Cursor = req.Cursor + "/" + loc.PartitionName()
		}
		res, err := p.Backfill(ctx, r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if res.Cancelled {
			break
		}
	}
	return results, nil
}

func (p *Pipeline) validateBackfill(req BackfillRequest) (domain.Location, time.Time, time.Time, error) {
	loc, err := p.location(req.Location)
	if err != nil {
		return domain.Location{}, time.Time{}, time.Time{}, err
	}
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		return domain.Location{}, time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		return domain.Location{}, time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	if start.After(end) {
		return domain.Location{}, time.Time{}, time.Time{}, fmt.Errorf("%w: start date %s is after end date %s",
			domain.ErrInvalidRequest, req.StartDate, req.EndDate)
	}
	if end.After(domain.Today()) {
		return domain.Location{}, time.Time{}, time.Time{}, fmt.Errorf("%w: end date %s is in the future",
			domain.ErrInvalidRequest, req.EndDate)
	}
	return loc, start, end, nil
}
