package mat

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// hermitianTol is the tolerance when checking whether a matrix is hermitian.
	hermitianTol = 1e-10

	// denseLimit is the largest dimension GroundState diagonalizes densely.
	denseLimit = 1 << 10
)

// ValVec is an eigenvalue and its eigenvector.
type ValVec struct {
	Val complex128
	Vec []complex128
}

// Eigen diagonalizes a real symmetric m.
// It panics if m has imaginary elements, see Eigh for the error returning version that also handles complex matrices.
func (m *COO) Eigen() []ValVec {
	for _, v := range m.Data {
		if imag(v.v) != 0 {
			panic("not real")
		}
	}
	vvs, err := Eigh(m)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return vvs
}

// Eigh returns all eigenvalues and orthonormal eigenvectors of the hermitian matrix m, in ascending order of eigenvalues.
func Eigh(m *COO) ([]ValVec, error) {
	if m.rows != m.cols {
		return nil, errors.Errorf("not square %d %d", m.rows, m.cols)
	}
	if !m.Hermitian(hermitianTol) {
		return nil, errors.Errorf("not hermitian")
	}

	isReal := true
	for _, v := range m.Data {
		if imag(v.v) != 0 {
			isReal = false
			break
		}
	}

	var vvs []ValVec
	var err error
	switch {
	case isReal:
		vvs, err = eighReal(m)
	default:
		vvs, err = eighComplex(m)
	}
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	slices.SortStableFunc(vvs, func(a, b ValVec) int { return cmp.Compare(real(a.Val), real(b.Val)) })
	return vvs, nil
}

func eighReal(m *COO) ([]ValVec, error) {
	n := m.rows
	sym := mat.NewSymDense(n, nil)
	for _, v := range m.Data {
		if v.col < v.row {
			continue
		}
		sym.SetSym(v.row, v.col, real(v.v))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, errors.Errorf("eig.Factorize failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	vvs := make([]ValVec, 0, len(vals))
	for i, v := range vals {
		vec := make([]complex128, 0, n)
		for j := 0; j < n; j++ {
			vec = append(vec, complex(vecs.At(j, i), 0))
		}
		vvs = append(vvs, ValVec{Val: complex(v, 0), Vec: vec})
	}
	return vvs, nil
}

// eighComplex diagonalizes the hermitian m = a + ib through the real symmetric matrix [[a, -b], [b, a]].
// Each eigenvalue of m appears twice in the embedding, with eigenvectors (u, v) and (-v, u), both of which correspond to u + iv up to a phase.
func eighComplex(m *COO) ([]ValVec, error) {
	n := m.rows
	sym := mat.NewSymDense(2*n, nil)
	for _, v := range m.Data {
		if v.col < v.row {
			continue
		}
		a, b := real(v.v), imag(v.v)
		sym.SetSym(v.row, v.col, a)
		sym.SetSym(n+v.row, n+v.col, a)
		// The lower-left block is b, whose transpose is the upper-right block -b.
		sym.SetSym(v.row, n+v.col, -b)
		if v.row != v.col {
			sym.SetSym(v.col, n+v.row, b)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, errors.Errorf("eig.Factorize failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, len(vals))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(vals[a], vals[b]) })

	vvs := make([]ValVec, 0, n)
	for _, k := range order {
		if len(vvs) == n {
			break
		}
		vec := make([]complex128, n)
		for j := range n {
			vec[j] = complex(vecs.At(j, k), vecs.At(n+j, k))
		}
		// Remove the components along accepted vectors, which are the phase rotated duplicates.
		for _, vv := range vvs {
			var ip complex128
			for j, x := range vv.Vec {
				ip += cmplx.Conj(x) * vec[j]
			}
			for j, x := range vv.Vec {
				vec[j] -= ip * x
			}
		}
		norm := vecNorm(vec)
		if norm < 0.5 {
			continue
		}
		for j := range vec {
			vec[j] /= complex(norm, 0)
		}
		vvs = append(vvs, ValVec{Val: complex(vals[k], 0), Vec: vec})
	}
	if len(vvs) != n {
		return nil, errors.Errorf("%d eigenvectors, expected %d", len(vvs), n)
	}
	return vvs, nil
}

// GroundState returns the lowest eigenvalue and its eigenvector.
// Small matrices are diagonalized exactly, and large ones with the Lanczos algorithm.
func GroundState(m *COO) (ValVec, error) {
	if m.rows <= denseLimit {
		vvs, err := Eigh(m)
		if err != nil {
			return ValVec{}, errors.Wrap(err, "")
		}
		return vvs[0], nil
	}

	vv, err := Lanczos(m, NewLanczosOptions())
	if err != nil {
		return ValVec{}, errors.Wrap(err, "")
	}
	return vv, nil
}

func vecNorm(x []complex128) float64 {
	var n float64
	for _, v := range x {
		n += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(n)
}
