/*
Extracted from HocusFocus plugin by George Hilios.
Original Copyright © 2021 George Hilios <ghilios+NINA@googlemail.com>
Licensed under Mozilla Public License 2.0.
Ported to Go.
*/

package lcreduce

import "math"

// solveLinear solves the n x n system A*x = b via Gaussian elimination with partial pivoting.
// A and b are not modified. Returns false if the matrix is singular.
func solveLinear(A [][]float64, b, x []float64, n int) bool {
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
		copy(a[i], A[i])
	}
	rhsCopy := make([]float64, n)
	copy(rhsCopy, b)

	// pivot threshold relative to the largest diagonal entry
	limit := 0.0
	for i := 0; i < n; i++ {
		limit = math.Max(limit, math.Abs(a[i][i]))
	}
	limit *= 1e-14
	if limit < 1e-300 {
		limit = 1e-300
	}

	for col := 0; col < n; col++ {
		maxRow := col
		maxVal := math.Abs(a[col][col])
		for row := col + 1; row < n; row++ {
			av := math.Abs(a[row][col])
			if av > maxVal {
				maxVal = av
				maxRow = row
			}
		}
		if maxVal < limit {
			return false
		}

		if maxRow != col {
			a[col], a[maxRow] = a[maxRow], a[col]
			rhsCopy[col], rhsCopy[maxRow] = rhsCopy[maxRow], rhsCopy[col]
		}

		pivot := a[col][col]
		for row := col + 1; row < n; row++ {
			factor := a[row][col] / pivot
			for j := col; j < n; j++ {
				a[row][j] -= factor * a[col][j]
			}
			rhsCopy[row] -= factor * rhsCopy[col]
		}
	}

	for row := n - 1; row >= 0; row-- {
		sum := rhsCopy[row]
		for j := row + 1; j < n; j++ {
			sum -= a[row][j] * x[j]
		}
		x[row] = sum / a[row][row]
	}
	return true
}
