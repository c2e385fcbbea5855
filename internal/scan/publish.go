package scan

import (
	"context"
	"errors"
	"fmt"

	"string-scout/internal/report"

	"github.com/rs/zerolog/log"
)

// Publisher ships a finished run somewhere other than the report file.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, run *report.Run) error
}

// PublishAll hands the run to every publisher, in order. A failing publisher
// does not stop the others; all failures are returned joined.
func PublishAll(ctx context.Context, run *report.Run, publishers ...Publisher) error {
	var errs []error
	for _, p := range publishers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.Publish(ctx, run); err != nil {
			log.Error().Err(err).Str("publisher", p.Name()).Str("run", run.ID).Msg("Publish failed")
			errs = append(errs, fmt.Errorf("publish %s: %w", p.Name(), err))
			continue
		}
		log.Info().Str("publisher", p.Name()).Str("run", run.ID).Msg("Run published")
	}
	return errors.Join(errs...)
}
