// Package mps implements matrix product states of spin chains:
// conversion from and to dense kets, MPO expectation values, the DMRG ground state search and gradient fitting of a state.
//
// Site tensors have axes {left, phys, right}, MPO tensors have axes {left, right, up, down}.
// The first site is the most significant digit of the dense basis index.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mps

import (
	"fmt"
	"math/cmplx"
	"math/rand/v2"

	"github.com/fumin/tensor"
)

const (
	// mpsLeftAxis is the axis of a_{l-1} in Figure 6.
	mpsLeftAxis  = 0
	mpsUpAxis    = 1
	mpsRightAxis = 2
	// mpoLeftAxis is the axis of b_{l-1} in Figure 35.
	mpoLeftAxis  = 0
	mpoRightAxis = 1
	mpoUpAxis    = 2
	mpoDownAxis  = 3

	// Machine precision of complex64.
	epsilon = 0x1p-23
)

// NewMPS splits the dense tensor state into a left canonical MPS by successive QR decompositions.
// See Section 4.1.3 Left-canonical matrix product state, Ulrich Schollwock.
func NewMPS(state *tensor.Dense, bufs [2]*tensor.Dense) []*tensor.Dense {
	dims := state.Shape()
	n := len(dims)

	sites := make([]*tensor.Dense, 0, n)
	bond, rest := 1, state
	for _, d := range dims[:n-1] {
		q := tensor.Zeros(1)
		r := tensor.QR(q, rest.Reshape(bond*d, -1), bufs)
		bond = r.Shape()[0]
		sites = append(sites, q.Reshape(-1, d, bond))
		rest = r
	}

	last := rest.Reshape(bond, dims[n-1], 1)
	return append(sites, resetCopy(tensor.Zeros(1), last))
}

// RandMPS creates a random state whose physical dimensions match mpo, with entries uniform in the unit square.
// maxD caps the bond dimensions, see D in the discussion below equation 71 in section 4.1.4, Ulrich Schollwock.
func RandMPS(mpo []*tensor.Dense, maxD int, rng *rand.Rand) []*tensor.Dense {
	if len(mpo) < 2 {
		panic(fmt.Sprintf("%d", len(mpo)))
	}
	physDs := make([]int, 0, len(mpo))
	for _, w := range mpo {
		physDs = append(physDs, w.Shape()[mpoDownAxis])
	}

	bonds := bondDims(physDs, maxD)
	sites := make([]*tensor.Dense, 0, len(mpo))
	for i, d := range physDs {
		sites = append(sites, randTensor(rng, bonds[i], d, bonds[i+1]))
	}
	return sites
}

// bondDims returns the n+1 bond dimensions of a chain with physical dimensions physDs.
// Bond i is the smaller of maxD and the Hilbert space dimensions to its left and right.
func bondDims(physDs []int, maxD int) []int {
	n := len(physDs)
	bonds := make([]int, n+1)
	for i := range bonds {
		bonds[i] = min(maxD, cappedProd(physDs[:i], maxD), cappedProd(physDs[i:], maxD))
	}
	return bonds
}

func cappedProd(ds []int, limit int) int {
	p := 1
	for _, d := range ds {
		p *= d
		if p >= limit {
			return limit
		}
	}
	return p
}

// product contracts the bonds of ms into p, alternating between p and buf.
func product(p *tensor.Dense, ms []*tensor.Dense, buf *tensor.Dense) *tensor.Dense {
	acc := [2]*tensor.Dense{buf, p}
	resetCopy(acc[0], ms[0])
	cur := 0
	for _, m := range ms[1:] {
		last := len(acc[cur].Shape()) - 1
		tensor.Contract(acc[1-cur], acc[cur], m, [][2]int{{last, mpsLeftAxis}})
		cur = 1 - cur
	}

	if cur == 0 {
		resetCopy(p, buf)
	}
	return p
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	origin := make([]int, len(shape))
	dst.Reset(shape...).Set(origin, src)
	return dst
}

func ones(t *tensor.Dense, shape ...int) *tensor.Dense {
	t.Reset(shape...)
	for ijk := range t.All() {
		t.SetAt(ijk, 1)
	}
	return t
}

// scalar returns the only element of t, whose dimensions must all be 1.
func scalar(t *tensor.Dense) complex64 {
	shape := t.Shape()
	for _, d := range shape {
		if d != 1 {
			panic(fmt.Sprintf("%#v", shape))
		}
	}
	return t.At(make([]int, len(shape))...)
}

func abs(x complex64) float32 {
	return float32(cmplx.Abs(complex128(x)))
}

func randTensor(rng *rand.Rand, shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for ijk := range t.All() {
		t.SetAt(ijk, complex(rng.Float32()*2-1, rng.Float32()*2-1))
	}
	return t
}
