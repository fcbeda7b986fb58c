//go:build purego || js

package lcreduce

// solveLeastSquares solves design*c = y in the least-squares sense through the
// normal equations. It reports false when the system is singular.
func solveLeastSquares(design [][]float64, y []float64) ([]float64, bool) {
	if len(design) == 0 {
		return nil, false
	}
	p := len(design[0])
	ata := make([][]float64, p)
	for i := range ata {
		ata[i] = make([]float64, p)
	}
	aty := make([]float64, p)
	for r, row := range design {
		for i := 0; i < p; i++ {
			aty[i] += row[i] * y[r]
			for j := i; j < p; j++ {
				ata[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < i; j++ {
			ata[i][j] = ata[j][i]
		}
	}
	coeffs := make([]float64, p)
	if !solveLinear(ata, aty, coeffs, p) {
		return nil, false
	}
	return coeffs, true
}
