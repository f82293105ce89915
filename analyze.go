package qheis

import (
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/qheis/mat"
	"github.com/fumin/qheis/quantum"
)

const (
	normTol = 1e-6
)

// Observables are the site resolved observables of a state.
type Observables struct {
	// Magnetization is <Sz_i>.
	Magnetization []float64
	// MutualInformation is the mutual information in bits between sites i and j, zero on the diagonal.
	MutualInformation [][]float64
	// Correlation is <Sz_i Sz_j> - <Sz_i><Sz_j>.
	Correlation [][]float64
	// Energy is left for the caller.
	Energy float64
}

// Analyze returns the observables of the normalized state ket of lat.
func Analyze(lat Lattice, ket quantum.Ket) (Observables, error) {
	n := lat.NumSites()
	dims := quantum.Qubits(n)
	if len(ket) != quantum.NumStates(dims) {
		return Observables{}, errors.Errorf("ket length %d sites %d", len(ket), n)
	}
	if norm := quantum.Norm(ket); math.Abs(norm-1) > normTol {
		return Observables{}, errors.Errorf("not normalized %f", norm)
	}

	obs := Observables{
		Magnetization:     make([]float64, n),
		MutualInformation: square(n),
		Correlation:       square(n),
	}
	sz := quantum.Sz()
	for i := range n {
		obs.Magnetization[i] = real(quantum.Expec(mat.IKron(sz, dims, i), ket))
	}

	for i := range n {
		for j := i; j < n; j++ {
			c := quantum.Correlation(ket, sz, sz, dims, i, j)
			obs.Correlation[i][j], obs.Correlation[j][i] = c, c
			if i == j {
				continue
			}

			mi, err := quantum.MutualInformation(ket, dims, []int{i}, []int{j})
			if err != nil {
				return Observables{}, errors.Wrap(err, "")
			}
			obs.MutualInformation[i][j], obs.MutualInformation[j][i] = mi, mi
		}
	}
	return obs, nil
}

func square(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
