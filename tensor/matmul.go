package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// Gemm computes c = alpha * op(a) * op(b) + beta * c on raw row-major slices,
// where a is m×k (k×m if transA), b is k×n (n×k if transB) and c is m×n.
func Gemm(transA, transB bool, m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) {
	ta, tb := blas.NoTrans, blas.NoTrans
	ga := general(m, k, a)
	if transA {
		ta = blas.Trans
		ga = general(k, m, a)
	}
	gb := general(k, n, b)
	if transB {
		tb = blas.Trans
		gb = general(n, k, b)
	}
	blas32.Gemm(ta, tb, alpha, ga, gb, beta, general(m, n, c))
}

// Axpy computes y += alpha * x
func Axpy(alpha float32, x, y []float32) {
	blas32.Axpy(alpha, blas32.Vector{N: len(x), Inc: 1, Data: x}, blas32.Vector{N: len(y), Inc: 1, Data: y})
}

// Dot returns the inner product of x and y
func Dot(x, y []float32) float32 {
	return blas32.Dot(blas32.Vector{N: len(x), Inc: 1, Data: x}, blas32.Vector{N: len(y), Inc: 1, Data: y})
}
