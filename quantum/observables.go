package quantum

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	gomat "gonum.org/v1/gonum/mat"

	"github.com/fumin/qheis/mat"
)

const (
	// entropyCutoff is the eigenvalue below which a density matrix eigenvalue does not contribute to entropy.
	entropyCutoff = 1e-12
)

// Expec returns <k|op|k>.
func Expec(op *mat.COO, k Ket) complex128 {
	return Dot(k, Apply(op, k))
}

// ExpecRho returns Tr(op rho).
func ExpecRho(op *mat.COO, rho *gomat.CDense) complex128 {
	var t complex128
	for ij, v := range op.All() {
		t += v * rho.At(ij[1], ij[0])
	}
	return t
}

// Entropy returns the von Neumann entropy of rho in bits.
func Entropy(rho *gomat.CDense) (float64, error) {
	vvs, err := mat.Eigh(COO(rho))
	if err != nil {
		return math.NaN(), errors.Wrap(err, "")
	}
	var s float64
	for _, vv := range vvs {
		p := real(vv.Val)
		if p < entropyCutoff {
			continue
		}
		s -= p * math.Log2(p)
	}
	return s, nil
}

// MutualInformation returns S(a) + S(b) - S(ab) in bits of the disjoint sites a and b of k.
func MutualInformation(k Ket, dims []int, a, b []int) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return math.NaN(), errors.Errorf("empty sites %v %v", a, b)
	}
	for _, i := range a {
		if slices.Contains(b, i) {
			return math.NaN(), errors.Errorf("overlapping sites %v %v", a, b)
		}
	}
	ab := slices.Concat(a, b)
	slices.Sort(ab)

	var s [3]float64
	for i, sites := range [][]int{a, b, ab} {
		rho, err := PartialTrace(k, dims, sites)
		if err != nil {
			return math.NaN(), errors.Wrap(err, "")
		}
		s[i], err = Entropy(rho)
		if err != nil {
			return math.NaN(), errors.Wrap(err, "")
		}
	}
	return s[0] + s[1] - s[2], nil
}

// Correlation returns <A_i B_j> - <A_i><B_j> of the hermitian operators A and B.
func Correlation(k Ket, opA, opB *mat.COO, dims []int, i, j int) float64 {
	ai := mat.IKron(opA, dims, i)
	bj := mat.IKron(opB, dims, j)

	bk := Apply(bj, k)
	abk := Apply(ai, bk)
	ab := Dot(k, abk)
	a := Dot(k, Apply(ai, k))
	b := Dot(k, bk)
	return real(ab - a*b)
}
