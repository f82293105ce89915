package qheis

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/fumin/qheis/mat"
	"github.com/fumin/qheis/quantum"
)

var (
	antiferro = [3]float64{1, 1, 1}
)

func TestBonds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lat   Lattice
		bonds [][2]int
	}{
		{lat: Chain(1, true), bonds: [][2]int{}},
		{lat: Chain(2, true), bonds: [][2]int{{0, 1}}},
		{lat: Chain(4, false), bonds: [][2]int{{0, 1}, {1, 2}, {2, 3}}},
		{lat: Chain(4, true), bonds: [][2]int{{0, 1}, {0, 3}, {1, 2}, {2, 3}}},
		{lat: Lattice{Shape: [2]int{1, 3}, Cyclic: true}, bonds: [][2]int{{0, 1}, {0, 2}, {1, 2}}},
		{lat: Lattice{Shape: [2]int{2, 2}, Cyclic: true}, bonds: [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}}},
		{
			lat: Lattice{Shape: [2]int{2, 3}, Cyclic: true},
			bonds: [][2]int{
				{0, 1}, {0, 2}, {0, 3},
				{1, 2}, {1, 4},
				{2, 5},
				{3, 4}, {3, 5},
				{4, 5},
			},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v", test.lat), func(t *testing.T) {
			t.Parallel()
			bonds := test.lat.Bonds()
			if diff := cmp.Diff(test.bonds, bonds, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("%s", diff)
			}
		})
	}

	if n := len((Lattice{Shape: [2]int{3, 3}, Cyclic: true}).Bonds()); n != 18 {
		t.Fatalf("%d, expected %d", n, 18)
	}
}

func TestGroundState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lat Lattice
		j   [3]float64
		bz  float64
		e0  float64
	}{
		{lat: Chain(2, false), j: antiferro, e0: -0.75},
		// The field polarizes both spins up.
		{lat: Chain(2, false), j: antiferro, bz: 2, e0: -1.75},
		{lat: Chain(4, false), j: antiferro, e0: -(3 + 2*math.Sqrt(3)) / 4},
		{lat: Chain(4, true), j: antiferro, e0: -2},
		{lat: Lattice{Shape: [2]int{2, 2}}, j: antiferro, e0: -2},
		{lat: Lattice{Shape: [2]int{3, 3}}, j: antiferro, e0: -4.7493272586},
		// The ferromagnet ground state is fully polarized.
		{lat: Chain(5, true), j: [3]float64{-1, -1, -1}, e0: -1.25},
		// 4096 states are solved by Lanczos.
		{lat: Lattice{Shape: [2]int{4, 3}}, j: antiferro, e0: -6.6916801935},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v %v %f", test.lat, test.j, test.bz), func(t *testing.T) {
			t.Parallel()
			vv, err := GroundState(test.lat, test.j, test.bz)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(real(vv.Val)-test.e0) > 1e-6 {
				t.Fatalf("%f, expected %f", real(vv.Val), test.e0)
			}
		})
	}
}

func TestHamHeis(t *testing.T) {
	t.Parallel()
	h := HamHeis(2, 1, 0, false)
	expected := mat.M([][]complex128{
		{0.25, 0, 0, 0},
		{0, -0.25, 0.5, 0},
		{0, 0.5, -0.25, 0},
		{0, 0, 0, 0.25},
	})
	if !h.ApproxEqual(expected, 1e-12) {
		t.Fatalf("%s, expected %s", h, expected)
	}

	ring := HamHeis(6, 1, 0, true)
	if !ring.Hermitian(1e-12) {
		t.Fatalf("not hermitian")
	}
	vv, err := mat.GroundState(ring)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if e0, expected := real(vv.Val), -(2+math.Sqrt(13))/2; math.Abs(e0-expected) > 1e-9 {
		t.Fatalf("%f, expected %f", e0, expected)
	}
}

func TestHeisenbergExplicit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lat Lattice
		j   [3]float64
		bz  float64
	}{
		{lat: Chain(2, false), j: antiferro},
		{lat: Chain(3, true), j: antiferro, bz: 0.5},
		{lat: Lattice{Shape: [2]int{2, 2}}, j: [3]float64{1, 1, 0.5}, bz: 0.3},
		{lat: Lattice{Shape: [2]int{2, 3}, Cyclic: true}, j: [3]float64{-1, -1, 2}, bz: -1},
		{lat: Chain(4, false), j: [3]float64{0, 0, 1}, bz: 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v %v %f", test.lat, test.j, test.bz), func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			if err := HeisenbergExplicit(dir, test.lat, test.j, test.bz); err != nil {
				t.Fatalf("%+v", err)
			}
			h, err := mat.ReadCOO(dir)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			expected, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
			Heisenberg(expected, buf, test.lat, test.j, test.bz)
			if !h.ApproxEqual(expected, 1e-12) {
				t.Fatalf("%s, expected %s", h, expected)
			}
		})
	}

	if err := HeisenbergExplicit(t.TempDir(), Chain(2, false), [3]float64{1, 0.5, 1}, 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHeisenbergDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	h := mat.DiskM(filepath.Join(dir, "h.db"), [][]complex128{{0}})
	defer h.Close()
	buf := mat.DiskM(filepath.Join(dir, "buf.db"), [][]complex128{{0}})
	defer buf.Close()

	lat := Chain(3, false)
	j := [3]float64{1, 0.7, 1}
	Heisenberg(h, buf, lat, j, 0.5)

	expected, cooBuf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
	Heisenberg(expected, cooBuf, lat, j, 0.5)
	if !h.COO().ApproxEqual(expected, 1e-12) {
		t.Fatalf("%s, expected %s", h.COO(), expected)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	s := complex(1/math.Sqrt2, 0)
	singlet := quantum.Ket{0, s, -s, 0}
	obs, err := Analyze(Chain(2, false), singlet)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	expected := Observables{
		Magnetization:     []float64{0, 0},
		MutualInformation: [][]float64{{0, 2}, {2, 0}},
		Correlation:       [][]float64{{0.25, -0.25}, {-0.25, 0.25}},
	}
	if diff := cmp.Diff(expected, obs, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("%s", diff)
	}

	// In the singlet ground state of the four site ring, <S_0·S_1> = -1/2 and <S_0·S_2> = 1/4.
	lat := Chain(4, true)
	vv, err := GroundState(lat, antiferro, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	obs, err = Analyze(lat, vv.Vec)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if diff := cmp.Diff(make([]float64, 4), obs.Magnetization, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("%s", diff)
	}
	corr := []float64{obs.Correlation[0][1], obs.Correlation[0][2], obs.Correlation[1][3]}
	if diff := cmp.Diff([]float64{-1. / 6, 1. / 12, 1. / 12}, corr, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("%s", diff)
	}
	if mi := obs.MutualInformation[0][1]; mi <= obs.MutualInformation[0][2] {
		t.Fatalf("%f %f", mi, obs.MutualInformation[0][2])
	}
}

func TestAnalyzeError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lat Lattice
		ket quantum.Ket
	}{
		{lat: Chain(2, false), ket: quantum.Ket{1, 0}},
		{lat: Chain(1, false), ket: quantum.Ket{1, 1}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v %v", test.lat, test.ket), func(t *testing.T) {
			t.Parallel()
			if _, err := Analyze(test.lat, test.ket); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
