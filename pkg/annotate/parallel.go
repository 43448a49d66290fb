package annotate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/ontology"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// Job is one spectrum to annotate. Model, when set, replaces the model
// passed to AnnotateAll for this spectrum.
type Job struct {
	Spectrum *spectrum.Spectrum
	Model    *fragment.Model
}

// Result holds the annotation of one job. Err is set when the peptide of
// that spectrum could not be parsed or fragmented; other jobs still run.
type Result struct {
	Annotated *Annotated
	Fdr       Fdr
	Err       error
}

// AnnotateAll annotates independent spectra on up to workers goroutines.
// Result i belongs to jobs[i]. Only context cancellation aborts the run.
func AnnotateAll(ctx context.Context, jobs []Job, model fragment.Model, tol Tolerance, tables *ontology.Tables, workers int) ([]Result, error) {
	if err := model.Charge.Validate(); err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	results := make([]Result, len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = annotateOne(job, model, tol, tables)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func annotateOne(job Job, model fragment.Model, tol Tolerance, tables *ontology.Tables) Result {
	s := job.Spectrum
	if job.Model != nil {
		model = *job.Model
	}
	c, err := s.Ion(tables)
	if err != nil {
		return Result{Err: fmt.Errorf("spectrum %s: %w", s.Name(), err)}
	}
	a, err := AnnotateCompound(s.Peaks, c, model, tol)
	if err != nil {
		return Result{Err: fmt.Errorf("spectrum %s: %w", s.Name(), err)}
	}
	return Result{Annotated: a, Fdr: a.FDR()}
}
