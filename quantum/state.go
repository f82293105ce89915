package quantum

import (
	"fmt"
	"math"
	"math/cmplx"

	gomat "gonum.org/v1/gonum/mat"

	"github.com/fumin/qheis/mat"
)

// Ket is a pure state in the computational basis.
type Ket []complex128

// NumStates returns the dimension of the space with local dimensions dims.
func NumStates(dims []int) int {
	d := 1
	for _, di := range dims {
		d *= di
	}
	return d
}

// Qubits returns the local dimensions of n spin-1/2 sites.
func Qubits(n int) []int {
	dims := make([]int, n)
	for i := range dims {
		dims[i] = 2
	}
	return dims
}

func Norm(k Ket) float64 {
	var n float64
	for _, v := range k {
		n += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(n)
}

// Normalize scales k to unit norm in place.
func Normalize(k Ket) Ket {
	n := Norm(k)
	for i := range k {
		k[i] /= complex(n, 0)
	}
	return k
}

// Dot returns <a|b>.
func Dot(a, b Ket) complex128 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("%d %d", len(a), len(b)))
	}
	var s complex128
	for i, ai := range a {
		s += cmplx.Conj(ai) * b[i]
	}
	return s
}

// Fidelity returns |<a|b>|^2.
func Fidelity(a, b Ket) float64 {
	ip := cmplx.Abs(Dot(a, b))
	return ip * ip
}

// Apply returns op|k>.
func Apply(op *mat.COO, k Ket) Ket {
	return op.MulVec(nil, k)
}

// Dop returns the density operator |k><k|.
func Dop(k Ket) *gomat.CDense {
	rho := gomat.NewCDense(len(k), len(k), nil)
	for i, ki := range k {
		for j, kj := range k {
			rho.Set(i, j, ki*cmplx.Conj(kj))
		}
	}
	return rho
}

// Trace returns the trace of rho.
func Trace(rho *gomat.CDense) complex128 {
	r, _ := rho.Dims()
	var t complex128
	for i := range r {
		t += rho.At(i, i)
	}
	return t
}

// COO converts a dense matrix to the sparse format.
func COO(rho *gomat.CDense) *mat.COO {
	r, c := rho.Dims()
	dense := make([][]complex128, r)
	for i := range dense {
		dense[i] = make([]complex128, c)
		for j := range dense[i] {
			dense[i][j] = rho.At(i, j)
		}
	}
	return mat.M(dense)
}

// CDense converts a sparse matrix to the dense format.
func CDense(m *mat.COO) *gomat.CDense {
	d := gomat.NewCDense(m.Rows(), m.Cols(), nil)
	for ij, v := range m.All() {
		d.Set(ij[0], ij[1], v)
	}
	return d
}
