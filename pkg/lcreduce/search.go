package lcreduce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// MaxSearchRegressors bounds the regressor count of a detrend-set search.
const MaxSearchRegressors = 10

// DetrendCandidate is one evaluated regressor subset.
type DetrendCandidate struct {
	Regressors []string
	BIC        float64
	Chi2Dof    float64
}

// OptimizeDetrendSet evaluates every non-empty subset of the curve's distinct
// regressors and returns the one with the lowest BIC. Subsets are reduced
// concurrently by at most workers goroutines (GOMAXPROCS when workers < 1).
func OptimizeDetrendSet(ctx context.Context, src DataSource, cs CurveSettings, markers Markers, opts Options, workers int) (DetrendCandidate, error) {
	if _, ok := cs.Detrend.Mode.Region(); !ok {
		return DetrendCandidate{}, fmt.Errorf("detrend mode %v does not fit coefficients", cs.Detrend.Mode)
	}
	var names []string
	seen := map[string]bool{}
	for _, n := range cs.Detrend.Regressors {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return DetrendCandidate{}, errors.New("no regressors to search")
	}
	if len(names) > MaxSearchRegressors {
		return DetrendCandidate{}, fmt.Errorf("%d regressors exceed the search limit of %d", len(names), MaxSearchRegressors)
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	total := 1<<len(names) - 1
	results := make([]DetrendCandidate, total)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mask := range jobs {
				results[mask-1] = evaluateSubset(src, cs, markers, opts, names, mask)
			}
		}()
	}

	var err error
feed:
	for mask := 1; mask <= total; mask++ {
		select {
		case jobs <- mask:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return DetrendCandidate{}, fmt.Errorf("detrend search: %w", err)
	}

	best := DetrendCandidate{BIC: math.Inf(1)}
	for _, c := range results {
		if !math.IsNaN(c.BIC) && c.BIC < best.BIC {
			best = c
		}
	}
	if math.IsInf(best.BIC, 1) {
		return DetrendCandidate{}, errors.New("no regressor subset could be fitted")
	}
	return best, nil
}

func evaluateSubset(src DataSource, cs CurveSettings, markers Markers, opts Options, names []string, mask int) DetrendCandidate {
	var subset []string
	for i, n := range names {
		if mask&(1<<i) != 0 {
			subset = append(subset, n)
		}
	}
	cs.Detrend.Regressors = subset
	cs.Detrend.Coefficients = nil
	cs.Transit.DetrendPriors = nil
	opts.ModelSamples = 2
	r := ReduceCurve(src, cs, markers, opts)
	c := DetrendCandidate{Regressors: subset, BIC: math.NaN(), Chi2Dof: math.NaN()}
	if r.Status == StatusOK {
		c.BIC, c.Chi2Dof = r.Stats.BIC, r.Stats.Chi2Dof
	}
	return c
}
