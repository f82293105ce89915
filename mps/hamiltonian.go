package mps

import (
	"fmt"

	"github.com/fumin/tensor"

	"github.com/fumin/qheis/quantum"
)

const (
	spinD = 2
)

// mpoBlock is the operator at row l and column r of a lower triangular MPO matrix, nil for zero.
type mpoBlock func(l, r int) [][]complex64

// MagnetizationZ returns the MPO of the total magnetization Σ Sz_i of a chain of n spins.
func MagnetizationZ(n int) []*tensor.Dense {
	sz, id := op64(quantum.Sz().Dense()), op64(quantum.Identity().Dense())
	w := func(l, r int) [][]complex64 {
		switch {
		case l == r:
			return id
		case l == 1 && r == 0:
			return sz
		}
		return nil
	}
	return newMPO(w, 2, n)
}

// Heisenberg returns the MPO of the open Heisenberg chain
// H = Σ_i (jx Sx_i Sx_{i+1} + jy Sy_i Sy_{i+1} + jz Sz_i Sz_{i+1}) - bz Σ_i Sz_i.
func Heisenberg(n int, j [3]float64, bz float64) []*tensor.Dense {
	ss := [3][][]complex64{
		op64(quantum.Sx().Dense()),
		op64(quantum.Sy().Dense()),
		op64(quantum.Sz().Dense()),
	}
	id := op64(quantum.Identity().Dense())
	field := scale64(-bz, ss[2])

	const last = 4
	w := func(l, r int) [][]complex64 {
		switch {
		case l == r && (l == 0 || l == last):
			return id
		case r == 0 && l >= 1 && l <= 3:
			return ss[l-1]
		case l == last && r == 0:
			return field
		case l == last && r >= 1 && r <= 3:
			return scale64(j[r-1], ss[r-1])
		}
		return nil
	}
	return newMPO(w, last+1, n)
}

// newMPO returns the MPO of a chain of n sites from the lower triangular d by d operator valued matrix w.
// The first site is the last row of w, and the last site is the first column of w.
func newMPO(w mpoBlock, d, n int) []*tensor.Dense {
	if n < 2 {
		panic(fmt.Sprintf("%d", n))
	}
	mpo := make([]*tensor.Dense, 0, n)

	mpo = append(mpo, mpoTensor(w, [2]int{d - 1, d}, [2]int{0, d}))
	for range n - 2 {
		mpo = append(mpo, mpoTensor(w, [2]int{0, d}, [2]int{0, d}))
	}
	mpo = append(mpo, mpoTensor(w, [2]int{0, d}, [2]int{0, 1}))

	return mpo
}

func mpoTensor(w mpoBlock, rows, cols [2]int) *tensor.Dense {
	t := tensor.Zeros(rows[1]-rows[0], cols[1]-cols[0], spinD, spinD)
	for l := rows[0]; l < rows[1]; l++ {
		for r := cols[0]; r < cols[1]; r++ {
			op := w(l, r)
			if op == nil {
				continue
			}
			for up := range spinD {
				for down := range spinD {
					t.SetAt([]int{l - rows[0], r - cols[0], up, down}, op[up][down])
				}
			}
		}
	}
	return t
}

func op64(dense [][]complex128) [][]complex64 {
	op := make([][]complex64, len(dense))
	for i, row := range dense {
		op[i] = make([]complex64, len(row))
		for j, v := range row {
			op[i][j] = complex64(v)
		}
	}
	return op
}

func scale64(c float64, x [][]complex64) [][]complex64 {
	y := make([][]complex64, len(x))
	for i, row := range x {
		y[i] = make([]complex64, len(row))
		for j, v := range row {
			y[i][j] = complex(float32(c), 0) * v
		}
	}
	return y
}
