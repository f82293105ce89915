package mps

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// FromKet returns the tensor of shape dims holding the dense ket k.
func FromKet(k []complex128, dims []int) (*tensor.Dense, error) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	if len(k) != n {
		return nil, errors.Errorf("ket length %d dims %v", len(k), dims)
	}

	t := tensor.Zeros(dims...)
	for ijk := range t.All() {
		t.SetAt(ijk, complex64(k[ravel(ijk, dims)]))
	}
	return t, nil
}

// Dense contracts the bonds of ms, and returns the resulting dense ket.
func Dense(ms []*tensor.Dense) []complex128 {
	if len(ms) == 0 {
		return nil
	}
	dims := make([]int, 0, len(ms))
	size := 1
	for _, m := range ms {
		d := m.Shape()[mpsUpAxis]
		dims = append(dims, d)
		size *= d
	}

	// p is of shape {1, d0, d1, ..., 1}.
	p := product(tensor.Zeros(1), ms, tensor.Zeros(1))
	if s := p.Shape(); s[0] != 1 || s[len(s)-1] != 1 {
		panic(fmt.Sprintf("%#v", s))
	}

	k := make([]complex128, size)
	for ijk, v := range p.All() {
		k[ravel(ijk[1:len(ijk)-1], dims)] = complex128(v)
	}
	return k
}

// RandState returns a random normalized MPS of n sites with physical dimension physD.
// The bond dimensions are the smaller of bondDim and the dimension of the shorter side of the chain.
func RandState(n, physD, bondDim int, rng *rand.Rand) []*tensor.Dense {
	physDs := make([]int, n)
	for i := range physDs {
		physDs[i] = physD
	}
	bonds := bondDims(physDs, bondDim)

	ms := make([]*tensor.Dense, 0, n)
	for i := range n {
		m := tensor.Zeros(bonds[i], physD, bonds[i+1])
		for ijk := range m.All() {
			m.SetAt(ijk, complex(float32(rng.NormFloat64()), float32(rng.NormFloat64())))
		}
		ms = append(ms, m)
	}

	Normalize(ms)
	return ms
}

// Normalize scales ms to unit norm, and returns the norm before scaling.
// It leaves ms in left canonical form.
func Normalize(ms []*tensor.Dense) float64 {
	var bufs [3]*tensor.Dense
	for i := range bufs {
		bufs[i] = tensor.Zeros(1)
	}
	LeftNormalize(ms, bufs)

	last := ms[len(ms)-1]
	var n2 float64
	for _, v := range last.All() {
		n2 += float64(real(v)*real(v) + imag(v)*imag(v))
	}
	norm := math.Sqrt(n2)
	if norm == 0 {
		return 0
	}
	c := complex(float32(1/norm), 0)
	for ijk, v := range last.All() {
		last.SetAt(ijk, c*v)
	}
	return norm
}

// ravel returns the row major index of the digits ijk in a mixed radix of dims.
func ravel(ijk, dims []int) int {
	var idx int
	for i, d := range dims {
		idx = idx*d + ijk[i]
	}
	return idx
}
