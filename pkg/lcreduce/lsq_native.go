//go:build !purego && !js

package lcreduce

import "gocv.io/x/gocv"

// solveLeastSquares solves design*c = y in the least-squares sense with
// OpenCV's SVD solver.
func solveLeastSquares(design [][]float64, y []float64) ([]float64, bool) {
	if len(design) == 0 {
		return nil, false
	}
	n, p := len(design), len(design[0])

	src := gocv.NewMatWithSize(n, p, gocv.MatTypeCV64F)
	defer src.Close()
	rhs := gocv.NewMatWithSize(n, 1, gocv.MatTypeCV64F)
	defer rhs.Close()
	for r, row := range design {
		for c, v := range row {
			src.SetDoubleAt(r, c, v)
		}
		rhs.SetDoubleAt(r, 0, y[r])
	}

	dst := gocv.NewMat()
	defer dst.Close()
	if !gocv.Solve(src, rhs, &dst, gocv.SolveDecompositionSvd) {
		return nil, false
	}
	coeffs := make([]float64, p)
	for i := range coeffs {
		coeffs[i] = dst.GetDoubleAt(i, 0)
	}
	return coeffs, true
}
