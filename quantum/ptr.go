package quantum

import (
	"fmt"
	"math/cmplx"
	"slices"

	"github.com/pkg/errors"
	gomat "gonum.org/v1/gonum/mat"
)

// PartialTrace returns the reduced density matrix of the sites keep, tracing out all other sites of the pure state k.
// The sites of the result are in ascending order.
func PartialTrace(k Ket, dims []int, keep []int) (*gomat.CDense, error) {
	if len(k) != NumStates(dims) {
		return nil, errors.Errorf("ket length %d dims %v", len(k), dims)
	}
	sp, err := newSplit(dims, keep)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	// psi[a][r] is the amplitude of the kept state a and the traced out state r.
	psi := make([][]complex128, sp.dKeep)
	for a := range psi {
		psi[a] = make([]complex128, sp.dRest)
		for r := range psi[a] {
			psi[a][r] = k[sp.full(a, r)]
		}
	}

	rho := gomat.NewCDense(sp.dKeep, sp.dKeep, nil)
	for a := range sp.dKeep {
		for b := a; b < sp.dKeep; b++ {
			var v complex128
			for r, pa := range psi[a] {
				v += pa * cmplx.Conj(psi[b][r])
			}
			rho.Set(a, b, v)
			rho.Set(b, a, cmplx.Conj(v))
		}
	}
	return rho, nil
}

// PartialTraceRho is PartialTrace for a density matrix.
func PartialTraceRho(rho *gomat.CDense, dims []int, keep []int) (*gomat.CDense, error) {
	r, c := rho.Dims()
	if r != c || r != NumStates(dims) {
		return nil, errors.Errorf("rho %dx%d dims %v", r, c, dims)
	}
	sp, err := newSplit(dims, keep)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	reduced := gomat.NewCDense(sp.dKeep, sp.dKeep, nil)
	for a := range sp.dKeep {
		for b := range sp.dKeep {
			var v complex128
			for r := range sp.dRest {
				v += rho.At(sp.full(a, r), sp.full(b, r))
			}
			reduced.Set(a, b, v)
		}
	}
	return reduced, nil
}

// split maps a basis index of the kept sites and one of the traced out sites to the basis index of the full space.
type split struct {
	dKeep int
	dRest int
	table []int
}

func newSplit(dims []int, keep []int) (split, error) {
	keep = slices.Clone(keep)
	slices.Sort(keep)
	if len(keep) != len(slices.Compact(slices.Clone(keep))) {
		return split{}, errors.Errorf("duplicate sites %v", keep)
	}
	for _, i := range keep {
		if i < 0 || i >= len(dims) {
			return split{}, errors.Errorf("site %d out of range %v", i, dims)
		}
	}

	keepDims := make([]int, 0, len(keep))
	restDims := make([]int, 0, len(dims)-len(keep))
	for i, d := range dims {
		if slices.Contains(keep, i) {
			keepDims = append(keepDims, d)
		} else {
			restDims = append(restDims, d)
		}
	}
	sp := split{dKeep: NumStates(keepDims), dRest: NumStates(restDims)}
	sp.table = make([]int, sp.dKeep*sp.dRest)

	digits := make([]int, len(dims))
	for idx := range NumStates(dims) {
		unravel(digits, idx, dims)
		var a, r int
		for i, d := range dims {
			if slices.Contains(keep, i) {
				a = a*d + digits[i]
			} else {
				r = r*d + digits[i]
			}
		}
		sp.table[a*sp.dRest+r] = idx
	}
	return sp, nil
}

func (sp split) full(a, r int) int {
	return sp.table[a*sp.dRest+r]
}

// unravel writes the mixed radix digits of idx into digits, with the first site the most significant.
func unravel(digits []int, idx int, dims []int) {
	if len(digits) != len(dims) {
		panic(fmt.Sprintf("%d %d", len(digits), len(dims)))
	}
	for i := len(dims) - 1; i >= 0; i-- {
		digits[i] = idx % dims[i]
		idx /= dims[i]
	}
}
