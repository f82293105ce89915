package quantum

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	gomat "gonum.org/v1/gonum/mat"

	"github.com/fumin/qheis/mat"
)

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)

	equateComplex = cmp.Comparer(func(a, b complex128) bool { return cmplx.Abs(a-b) < 1e-12 })
)

func singlet() Ket {
	return Ket{0, invSqrt2, -invSqrt2, 0}
}

func ghz(n int) Ket {
	k := make(Ket, 1<<n)
	k[0], k[len(k)-1] = invSqrt2, invSqrt2
	return k
}

func TestPartialTrace(t *testing.T) {
	t.Parallel()
	tests := []struct {
		k    Ket
		dims []int
		keep []int
		rho  [][]complex128
	}{
		{
			k:    singlet(),
			dims: Qubits(2),
			keep: []int{0},
			rho: [][]complex128{
				{0.5, 0},
				{0, 0.5},
			},
		},
		// |0> ⊗ |+>.
		{
			k:    Ket{invSqrt2, invSqrt2, 0, 0},
			dims: Qubits(2),
			keep: []int{1},
			rho: [][]complex128{
				{0.5, 0.5},
				{0.5, 0.5},
			},
		},
		{
			k:    ghz(3),
			dims: Qubits(3),
			keep: []int{2, 0},
			rho: [][]complex128{
				{0.5, 0, 0, 0},
				{0, 0, 0, 0},
				{0, 0, 0, 0},
				{0, 0, 0, 0.5},
			},
		},
		// Mixed local dimensions, |2> ⊗ |1>.
		{
			k:    Ket{0, 0, 0, 0, 0, 1},
			dims: []int{3, 2},
			keep: []int{0},
			rho: [][]complex128{
				{0, 0, 0},
				{0, 0, 0},
				{0, 0, 1},
			},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.dims, test.keep), func(t *testing.T) {
			t.Parallel()
			rho, err := PartialTrace(test.k, test.dims, test.keep)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if diff := cmp.Diff(test.rho, COO(rho).Dense(), equateComplex); diff != "" {
				t.Fatalf("%s", diff)
			}

			rho2, err := PartialTraceRho(Dop(test.k), test.dims, test.keep)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if diff := cmp.Diff(test.rho, COO(rho2).Dense(), equateComplex); diff != "" {
				t.Fatalf("%s", diff)
			}
		})
	}
}

func TestPartialTraceError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		k    Ket
		dims []int
		keep []int
	}{
		{k: singlet(), dims: Qubits(3), keep: []int{0}},
		{k: singlet(), dims: Qubits(2), keep: []int{2}},
		{k: singlet(), dims: Qubits(2), keep: []int{1, 1}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.dims, test.keep), func(t *testing.T) {
			t.Parallel()
			if _, err := PartialTrace(test.k, test.dims, test.keep); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestMutualInformation(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 1))
	tests := []struct {
		k    Ket
		dims []int
		a    []int
		b    []int
		mi   float64
	}{
		{k: singlet(), dims: Qubits(2), a: []int{0}, b: []int{1}, mi: 2},
		{k: ghz(3), dims: Qubits(3), a: []int{0}, b: []int{2}, mi: 1},
		{k: ghz(3), dims: Qubits(3), a: []int{0}, b: []int{1, 2}, mi: 2},
		{k: RandProductState(3, rng), dims: Qubits(3), a: []int{0}, b: []int{2}, mi: 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.a, test.b), func(t *testing.T) {
			t.Parallel()
			mi, err := MutualInformation(test.k, test.dims, test.a, test.b)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(mi-test.mi) > 1e-8 {
				t.Fatalf("%f, expected %f", mi, test.mi)
			}
		})
	}

	if _, err := MutualInformation(ghz(3), Qubits(3), []int{0, 1}, []int{1}); err == nil {
		t.Fatalf("expected error for overlapping sites")
	}
}

func TestEntropy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rho *gomat.CDense
		s   float64
	}{
		{rho: Dop(RandKet(4, rand.New(rand.NewPCG(2, 2)))), s: 0},
		{rho: CDense(mat.COOIdentity(4).Scale(0.25)), s: 2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%f", test.s), func(t *testing.T) {
			t.Parallel()
			s, err := Entropy(test.rho)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(s-test.s) > 1e-8 {
				t.Fatalf("%f, expected %f", s, test.s)
			}
		})
	}
}

func TestCorrelation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		k    Ket
		n    int
		opA  *mat.COO
		opB  *mat.COO
		i, j int
		c    float64
	}{
		{k: singlet(), n: 2, opA: Sz(), opB: Sz(), i: 0, j: 1, c: -0.25},
		{k: singlet(), n: 2, opA: Sx(), opB: Sx(), i: 1, j: 0, c: -0.25},
		{k: ghz(3), n: 3, opA: Sz(), opB: Sz(), i: 0, j: 2, c: 0.25},
		// <Sz Sz> on the same site is 1/4.
		{k: ghz(3), n: 3, opA: Sz(), opB: Sz(), i: 1, j: 1, c: 0.25},
		{k: Ket{1, 0, 0, 0}, n: 2, opA: Sz(), opB: Sz(), i: 0, j: 1, c: 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %d %d", test.k, test.i, test.j), func(t *testing.T) {
			t.Parallel()
			c := Correlation(test.k, test.opA, test.opB, Qubits(test.n), test.i, test.j)
			if math.Abs(c-test.c) > 1e-12 {
				t.Fatalf("%f, expected %f", c, test.c)
			}
		})
	}
}

func TestExpec(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(3, 3))
	k := RandKet(8, rng)
	op := RandHerm(8, rng)
	e := Expec(op, k)
	if math.Abs(imag(e)) > 1e-12 {
		t.Fatalf("%v", e)
	}
	if eRho := ExpecRho(op, Dop(k)); cmplx.Abs(eRho-e) > 1e-12 {
		t.Fatalf("%v, expected %v", eRho, e)
	}

	up := Ket{1, 0}
	if e := Expec(Sz(), up); e != 0.5 {
		t.Fatalf("%v", e)
	}
}

func TestPurify(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(4, 4))
	tests := []*gomat.CDense{
		RandRho(4, rng),
		RandMix(3, rng),
		Dop(RandKet(2, rng)),
	}
	for _, rho := range tests {
		d, _ := rho.Dims()
		t.Run(fmt.Sprintf("%d", d), func(t *testing.T) {
			t.Parallel()
			if tr := Trace(rho); cmplx.Abs(tr-1) > 1e-12 {
				t.Fatalf("%v", tr)
			}

			k, err := Purify(rho)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if n := Norm(k); math.Abs(n-1) > 1e-10 {
				t.Fatalf("%f", n)
			}
			reduced, err := PartialTrace(k, []int{d, d}, []int{0})
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !COO(reduced).ApproxEqual(COO(rho), 1e-10) {
				t.Fatalf("%s, expected %s", COO(reduced), COO(rho))
			}
		})
	}
}

func TestRandProductState(t *testing.T) {
	t.Parallel()
	k := RandProductState(4, rand.New(rand.NewPCG(5, 5)))
	if len(k) != 16 {
		t.Fatalf("%d", len(k))
	}
	if n := Norm(k); math.Abs(n-1) > 1e-12 {
		t.Fatalf("%f", n)
	}
	// Every single site is pure.
	entropies := make([]float64, 4)
	for i := range entropies {
		rho, err := PartialTrace(k, Qubits(4), []int{i})
		if err != nil {
			t.Fatalf("%+v", err)
		}
		entropies[i], err = Entropy(rho)
		if err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if diff := cmp.Diff(make([]float64, 4), entropies, cmpopts.EquateApprox(0, 1e-8)); diff != "" {
		t.Fatalf("%s", diff)
	}
}

func TestLadder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ladder *mat.COO
		sign   complex128
	}{
		{ladder: Sp(), sign: 1i},
		{ladder: Sm(), sign: -1i},
	}
	for _, test := range tests {
		expected := Sx()
		expected.Add(test.sign, Sy())
		if !test.ladder.ApproxEqual(expected, 1e-12) {
			t.Fatalf("%s, expected %s", test.ladder, expected)
		}
	}

	// [Sp, Sm] = 2Sz
	comm := Sp().MatMul(Sm())
	comm.Add(-1, Sm().MatMul(Sp()))
	if expected := Sz().Scale(2); !comm.ApproxEqual(expected, 1e-12) {
		t.Fatalf("%s, expected %s", comm, expected)
	}
}

func TestSpin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		axis     string
		expected *mat.COO
	}{
		{axis: "x", expected: Sx()},
		{axis: "y", expected: Sy()},
		{axis: "z", expected: Sz()},
		{axis: "w"},
	}
	for _, test := range tests {
		s, ok := Spin(test.axis)
		if ok != (test.expected != nil) {
			t.Fatalf("%s %t", test.axis, ok)
		}
		if ok && !s.ApproxEqual(test.expected, 1e-12) {
			t.Fatalf("%s %s, expected %s", test.axis, s, test.expected)
		}
	}
}

// checkIsometry checks that the columns of v are orthonormal.
func checkIsometry(t *testing.T, v *mat.COO) {
	t.Helper()
	if p := v.H().MatMul(v); !p.ApproxEqual(mat.COOIdentity(v.Cols()), 1e-12) {
		t.Fatalf("%s", p)
	}
}

func TestRandUni(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(6, 6))
	for _, d := range []int{1, 2, 5} {
		u := COO(RandUni(d, rng))
		checkIsometry(t, u)
		checkIsometry(t, u.H())
	}

	k := RandHaarState(6, rng)
	if n := Norm(k); math.Abs(n-1) > 1e-12 {
		t.Fatalf("%f", n)
	}
}

func TestRandIso(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 7))
	tests := []struct {
		n int
		m int
	}{
		{n: 5, m: 3},
		{n: 3, m: 5},
		{n: 4, m: 4},
	}
	for _, test := range tests {
		iso := RandIso(test.n, test.m, rng)
		if r, c := iso.Dims(); r != test.n || c != test.m {
			t.Fatalf("%d %d, expected %d %d", r, c, test.n, test.m)
		}
		v := COO(iso)
		if test.n >= test.m {
			checkIsometry(t, v)
		} else {
			checkIsometry(t, v.H())
		}
	}
}

func TestRandPositive(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(8, 8))
	tests := []struct {
		name  string
		m     *gomat.CDense
		trace bool
	}{
		{name: "pos", m: RandPos(5, rng)},
		{name: "rho", m: RandRho(5, rng), trace: true},
		{name: "separable", m: RandSeparable([]int{2, 3}, 4, rng), trace: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if test.trace {
				if tr := Trace(test.m); cmplx.Abs(tr-1) > 1e-12 {
					t.Fatalf("%v", tr)
				}
			}
			vvs, err := mat.Eigh(COO(test.m))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if v := real(vvs[0].Val); v < -1e-12 {
				t.Fatalf("%f", v)
			}
		})
	}
}

func TestRandSeparable(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(9, 9))
	rho := RandSeparable([]int{2, 2}, 3, rng)
	if r, c := rho.Dims(); r != 4 || c != 4 {
		t.Fatalf("%d %d", r, c)
	}

	// A single product has uncorrelated sites.
	rho = RandSeparable([]int{2, 2}, 1, rng)
	a, err := PartialTraceRho(rho, []int{2, 2}, []int{0})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	b, err := PartialTraceRho(rho, []int{2, 2}, []int{1})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if product := mat.KronAll(COO(a), COO(b)); !product.ApproxEqual(COO(rho), 1e-12) {
		t.Fatalf("%s, expected %s", product, COO(rho))
	}
}
