// Package quantum computes properties of spin-1/2 quantum states: expectation values,
// reduced density matrices, entanglement entropies, mutual information and correlation functions.
//
// States are kets in the computational basis of a tensor product space,
// whose site 0 is the most significant digit of the basis index, in the same order as mat.Kron.
package quantum

import (
	"github.com/fumin/qheis/mat"
)

// Spin-1/2 operators, S = σ/2.
// Each call returns a new matrix, since matrix operations reuse internal buffers of their operands.

func Sx() *mat.COO { return mat.M(mat.PauliX).Scale(0.5) }
func Sy() *mat.COO { return mat.M(mat.PauliY).Scale(0.5) }
func Sz() *mat.COO { return mat.M(mat.PauliZ).Scale(0.5) }

// Sp is the raising operator Sx + iSy.
func Sp() *mat.COO {
	return mat.M([][]complex128{
		{0, 1},
		{0, 0},
	})
}

// Sm is the lowering operator Sx - iSy.
func Sm() *mat.COO {
	return mat.M([][]complex128{
		{0, 0},
		{1, 0},
	})
}

func Identity() *mat.COO { return mat.COOIdentity(2) }

// Spin returns the spin-1/2 operator along the axis "x", "y" or "z".
func Spin(axis string) (*mat.COO, bool) {
	switch axis {
	case "x":
		return Sx(), true
	case "y":
		return Sy(), true
	case "z":
		return Sz(), true
	default:
		return nil, false
	}
}
