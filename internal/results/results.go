// Package results stores harness reports outside the probe process.
package results

import (
	"context"
	"errors"
	"fmt"

	"github.com/fruitsalade/renterprobe/internal/harness"
)

// Sink persists a finished report.
type Sink interface {
	Name() string
	Save(ctx context.Context, rep *harness.Report) error
}

// SaveAll hands the report to every sink. A failing sink does not stop the
// others; their errors are joined.
func SaveAll(ctx context.Context, rep *harness.Report, sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Save(ctx, rep); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
