package qheis

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/qheis/mat"
	"github.com/fumin/qheis/quantum"
)

// Heisenberg writes into hamiltonian the Heisenberg model of lat
// H = Σ_<ij> (jx Sx_i Sx_j + jy Sy_i Sy_j + jz Sz_i Sz_j) - bz Σ_i Sz_i.
// buf is scratch space of the same kind as hamiltonian.
func Heisenberg(hamiltonian, buf mat.Matrix, lat Lattice, j [3]float64, bz float64) {
	dims := quantum.Qubits(lat.NumSites())
	n := quantum.NumStates(dims)
	hamiltonian.Zeros(n, n)

	spins := [3]*mat.COO{quantum.Sx(), quantum.Sy(), quantum.Sz()}
	for _, b := range lat.Bonds() {
		for axis, s := range spins {
			if j[axis] == 0 {
				continue
			}
			mat.IKronTo(buf, s, dims, b[0], b[1])
			hamiltonian.Add(complex(j[axis], 0), buf)
		}
	}

	if bz == 0 {
		return
	}
	for i := range lat.NumSites() {
		mat.IKronTo(buf, spins[2], dims, i)
		hamiltonian.Add(complex(-bz, 0), buf)
	}
}

// HamHeis returns the Hamiltonian of the isotropic Heisenberg chain of n sites with coupling j and field bz.
func HamHeis(n int, j, bz float64, cyclic bool) *mat.COO {
	h, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
	Heisenberg(h, buf, Chain(n, cyclic), [3]float64{j, j, j}, bz)
	return h
}

// GroundState returns the lowest eigenpair of the Heisenberg model of lat.
func GroundState(lat Lattice, j [3]float64, bz float64) (mat.ValVec, error) {
	h, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
	Heisenberg(h, buf, lat, j, bz)
	vv, err := mat.GroundState(h)
	if err != nil {
		return mat.ValVec{}, errors.Wrap(err, "")
	}
	return vv, nil
}

// HeisenbergExplicit writes the Heisenberg model of lat into dir in the COO csv format.
// Elements are computed directly in the computational basis, allowing lattices whose Kronecker products do not fit in memory.
// Only jx == jy is supported, in which case the transverse coupling flips antiparallel neighbours with amplitude jx/2.
func HeisenbergExplicit(dir string, lat Lattice, j [3]float64, bz float64) error {
	if j[0] != j[1] {
		return errors.Errorf("jx %f != jy %f", j[0], j[1])
	}
	numSites := lat.NumSites()
	numStates := 1 << numSites
	if err := mat.WriteShape(dir, numStates, numStates); err != nil {
		return errors.Wrap(err, "")
	}

	f, err := os.Create(filepath.Join(dir, mat.FnameCOO))
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := mat.NewCOOWriter(f)

	bonds := lat.Bonds()
	// row is a reusable buffer of the elements of a row.
	row := make([]element, 0, len(bonds)+1)
Loop:
	for i, state := range bits(numSites) {
		row = row[:0]

		var diag float64
		for _, b := range bonds {
			si, sj := spinZ(state[b[0]]), spinZ(state[b[1]])
			diag += j[2] * si * sj
			if state[b[0]] != state[b[1]] && j[0] != 0 {
				col := flip(i, numSites, b[0], b[1])
				row = append(row, element{v: complex(j[0]/2, 0), col: col})
			}
		}
		for _, s := range state {
			diag -= bz * spinZ(s)
		}
		if diag != 0 {
			row = append(row, element{v: complex(diag, 0), col: i})
		}

		slices.SortFunc(row, func(a, b element) int { return cmp.Compare(a.col, b.col) })
		for _, e := range row {
			if err1 := w.Write(e.v, i, e.col); err1 != nil && err == nil {
				err = errors.Wrap(err1, "")
				break Loop
			}
		}
	}

	if err1 := w.Flush(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

type element struct {
	v   complex128
	col int
}

// spinZ returns the Sz eigenvalue of a basis bit, where 0 is spin up.
func spinZ(bit byte) float64 {
	if bit == 0 {
		return 0.5
	}
	return -0.5
}

// flip returns the basis index i with the spins of sites a and b flipped.
func flip(i, numSites, a, b int) int {
	return i ^ (1 << (numSites - 1 - a)) ^ (1 << (numSites - 1 - b))
}

// bits iterates over the basis states of n spins, with site 0 as the most significant bit.
// The yielded slice is reused between iterations.
func bits(n int) func(yield func(int, []byte) bool) {
	state := make([]byte, n)
	return func(yield func(int, []byte) bool) {
		for i := range 1 << n {
			for s := range n {
				state[s] = byte((i >> (n - 1 - s)) & 1)
			}
			if !yield(i, state) {
				return
			}
		}
	}
}
