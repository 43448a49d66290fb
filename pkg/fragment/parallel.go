package fragment

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/PFKey/pkg/peptide"
)

// GenerateAll fragments independent ions on up to workers goroutines. The
// result for ions[i] is stored at index i, so the output does not depend on
// scheduling. workers <= 0 means no limit.
func GenerateAll(ctx context.Context, ions []*peptide.PeptidoformIon, model Model, workers int) ([][]Fragment, error) {
	if err := model.Charge.Validate(); err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	results := make([][]Fragment, len(ions))
	for i, ion := range ions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frags, err := Generate(ion, model)
			if err != nil {
				return fmt.Errorf("ion %d: %w", i, err)
			}
			results[i] = frags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
