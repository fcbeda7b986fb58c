package lcreduce

import (
	"math"
	"strings"
)

// bucketing describes how raw rows collapse into samples.
type bucketing struct {
	head, usable, size, count int
}

func newBucketing(rows, head, tail, size int) bucketing {
	if size < 1 {
		size = 1
	}
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	if rows == 0 {
		return bucketing{size: size}
	}
	if head+tail >= rows {
		head = min(head, rows-1)
		tail = rows - head - 1
	}
	usable := rows - head - tail
	return bucketing{
		head:   head,
		usable: usable,
		size:   size,
		count:  (usable + size - 1) / size,
	}
}

// span returns the raw row range of bucket j.
func (b bucketing) span(j int) (int, int) {
	start := b.head + j*b.size
	end := start + b.size
	if limit := b.head + b.usable; end > limit {
		end = limit
	}
	return start, end
}

// Aggregate drops head and tail rows and averages consecutive buckets of size rows.
// NaN entries are skipped; a bucket of only NaN yields NaN.
func Aggregate(values []float64, head, tail, size int) []float64 {
	b := newBucketing(len(values), head, tail, size)
	out := make([]float64, b.count)
	for j := range out {
		start, end := b.span(j)
		out[j], _ = meanMasked(values[start:end], nil)
	}
	return out
}

// aggregateGated averages rows whose gate value is not NaN. NaN in values
// propagates so a missing regressor marks the sample unusable.
func aggregateGated(values, gate []float64, b bucketing) []float64 {
	out := make([]float64, b.count)
	for j := range out {
		start, end := b.span(j)
		sum := 0.0
		n := 0
		for r := start; r < end; r++ {
			if math.IsNaN(gate[r]) {
				continue
			}
			sum += values[r]
			n++
		}
		if n == 0 {
			out[j] = math.NaN()
			continue
		}
		out[j] = sum / float64(n)
	}
	return out
}

// aggregateErrors combines errors in quadrature and divides by the contributing count.
func aggregateErrors(errs, gate []float64, b bucketing) []float64 {
	out := make([]float64, b.count)
	for j := range out {
		start, end := b.span(j)
		sum := 0.0
		n := 0
		for r := start; r < end; r++ {
			if math.IsNaN(gate[r]) {
				continue
			}
			sum += errs[r] * errs[r]
			n++
		}
		if n == 0 {
			out[j] = math.NaN()
			continue
		}
		out[j] = math.Sqrt(sum) / float64(n)
	}
	return out
}

// ErrorColumnFor guesses the error column that accompanies a measurement column.
func ErrorColumnFor(name string) (string, bool) {
	switch {
	case strings.HasPrefix(name, "rel_flux_T"), strings.HasPrefix(name, "rel_flux_C"):
		return "rel_flux_err_" + strings.TrimPrefix(name, "rel_flux_"), true
	case strings.HasPrefix(name, "Source-Sky_"):
		return "Source_Error_" + strings.TrimPrefix(name, "Source-Sky_"), true
	case strings.HasPrefix(name, "tot_C_cnts"):
		return "tot_C_err" + strings.TrimPrefix(name, "tot_C_cnts"), true
	case strings.HasPrefix(name, "Source_AMag_"):
		return "Source_AMag_Err_" + strings.TrimPrefix(name, "Source_AMag_"), true
	}
	return "", false
}

// jdOffset is added to time columns labelled as reduced Julian dates.
func jdOffset(name string) float64 {
	if strings.HasPrefix(name, "J.D.-2400000") {
		return 2400000
	}
	return 0
}
