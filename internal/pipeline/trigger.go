package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// HandleTrigger runs the ingestion a trigger asks for. Only a rejected
// trigger is an error; unit failures are reported in the run's result.
func (p *Pipeline) HandleTrigger(ctx context.Context, t domain.IngestTrigger) error {
	switch t.Type {
	case domain.ModeDaily:
		p.RunDaily(ctx)
		return nil
	case domain.ModeBackfill:
		req := BackfillRequest{
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
			Location:  t.Location,
			Cursor:    t.Cursor,
		}
		if t.Location == AllLocations {
			_, err := p.BackfillAll(ctx, req)
			return err
		}
		_, err := p.Backfill(ctx, req)
		return err
	default:
		return fmt.Errorf("%w: unknown trigger type %q", domain.ErrInvalidRequest, t.Type)
	}
}
