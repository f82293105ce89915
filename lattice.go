// Package qheis builds Heisenberg Hamiltonians of spin-1/2 lattices, and computes the site resolved observables of their ground states.
package qheis

import (
	"cmp"
	"slices"
)

// Lattice is a rectangular lattice of spin-1/2 sites.
// Shape is the number of rows and columns, and the site at row y and column x has index y*Shape[1]+x.
type Lattice struct {
	Shape  [2]int
	Cyclic bool
}

// Chain returns the 1D lattice of n sites.
func Chain(n int, cyclic bool) Lattice {
	return Lattice{Shape: [2]int{n, 1}, Cyclic: cyclic}
}

// NumSites returns the number of sites.
func (lat Lattice) NumSites() int {
	return lat.Shape[0] * lat.Shape[1]
}

func (lat Lattice) site(y, x int) int {
	return y*lat.Shape[1] + x
}

// Bonds returns the nearest neighbour pairs of sites, each pair once with the smaller site first.
// In a cyclic lattice, only dimensions longer than 2 wrap around.
func (lat Lattice) Bonds() [][2]int {
	rows, cols := lat.Shape[0], lat.Shape[1]
	bonds := make([][2]int, 0, 2*lat.NumSites())
	for y := range rows {
		for x := range cols {
			s := lat.site(y, x)

			up := y - 1
			if up < 0 && lat.Cyclic && rows > 2 {
				up = rows - 1
			}
			if up >= 0 {
				bonds = append(bonds, bond(s, lat.site(up, x)))
			}

			left := x - 1
			if left < 0 && lat.Cyclic && cols > 2 {
				left = cols - 1
			}
			if left >= 0 {
				bonds = append(bonds, bond(s, lat.site(y, left)))
			}
		}
	}

	slices.SortFunc(bonds, func(a, b [2]int) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return bonds
}

func bond(i, j int) [2]int {
	return [2]int{min(i, j), max(i, j)}
}
