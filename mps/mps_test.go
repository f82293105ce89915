package mps

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/fumin/tensor"

	"github.com/fumin/qheis/mat"
	"github.com/fumin/qheis/quantum"
)

func newBufs(n int) []*tensor.Dense {
	bufs := make([]*tensor.Dense, 0, n)
	for range n {
		bufs = append(bufs, tensor.Zeros(1))
	}
	return bufs
}

// expectation returns <ms|mpo|ms> / <ms|ms>.
func expectation(mpo, ms []*tensor.Dense) complex128 {
	fs := newBufs(len(mpo))
	bufs := [2]*tensor.Dense(newBufs(2))
	e := LExpressions(fs, mpo, ms, bufs) / InnerProduct(ms, ms, bufs)
	return complex128(e)
}

func denseHeisenberg(n int, j [3]float64, bz float64) *mat.COO {
	dims := quantum.Qubits(n)
	h := mat.COOZeros(1<<n, 1<<n)
	ss := []*mat.COO{quantum.Sx(), quantum.Sy(), quantum.Sz()}
	for i := range n - 1 {
		for a, s := range ss {
			h.Add(complex(j[a], 0), mat.IKron(s, dims, i, i+1))
		}
	}
	for i := range n {
		h.Add(complex(-bz, 0), mat.IKron(quantum.Sz(), dims, i))
	}
	return h
}

func TestHeisenberg(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n  int
		j  [3]float64
		bz float64
	}{
		{n: 2, j: [3]float64{1, 1, 1}, bz: 0},
		{n: 3, j: [3]float64{1, 0.5, -2}, bz: 0.3},
		{n: 5, j: [3]float64{1, 1, 1}, bz: -1},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %v %f", test.n, test.j, test.bz), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(uint64(test.n), 0))
			ms := RandState(test.n, 2, 4, rng)
			ket := Dense(ms)

			h := denseHeisenberg(test.n, test.j, test.bz)
			expected := quantum.Expec(h, ket) / complex(quantum.Norm(ket)*quantum.Norm(ket), 0)
			e := expectation(Heisenberg(test.n, test.j, test.bz), ms)
			if cmplx.Abs(e-expected) > 1e-4 {
				t.Fatalf("%v, expected %v", e, expected)
			}
		})
	}
}

func TestMagnetizationZ(t *testing.T) {
	t.Parallel()
	// |up, up, down>.
	k := make([]complex128, 8)
	k[1] = 1
	state, err := FromKet(k, quantum.Qubits(3))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	ms := NewMPS(state, [2]*tensor.Dense(newBufs(2)))
	if m := expectation(MagnetizationZ(3), ms); cmplx.Abs(m-0.5) > 1e-5 {
		t.Fatalf("%v", m)
	}
}

func TestSearchGroundState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n       int
		bondDim int
		e0      float64
	}{
		{n: 2, bondDim: 2, e0: -0.75},
		{n: 4, bondDim: 4, e0: -(3 + 2*math.Sqrt(3)) / 4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.n), func(t *testing.T) {
			t.Parallel()
			mpo := Heisenberg(test.n, [3]float64{1, 1, 1}, 0)
			fs := newBufs(len(mpo))
			bufs := [10]*tensor.Dense(newBufs(10))
			ms := RandMPS(mpo, test.bondDim, rand.New(rand.NewPCG(1, 2)))
			opt := NewSearchGroundStateOptions().Tol(1e-5)
			if err := SearchGroundState(fs, mpo, ms, bufs, opt); err != nil {
				t.Fatalf("%+v", err)
			}

			e0 := real(expectation(mpo, ms))
			if math.Abs(e0-test.e0) > 1e-3 {
				t.Fatalf("%f, expected %f", e0, test.e0)
			}
			m := expectation(MagnetizationZ(test.n), ms)
			if cmplx.Abs(m) > 1e-3 {
				t.Fatalf("%v", m)
			}
		})
	}
}

func TestRExpressions(t *testing.T) {
	t.Parallel()
	mpo := Heisenberg(5, [3]float64{1, 0.5, -2}, 0.3)
	ms := RandMPS(mpo, 3, rand.New(rand.NewPCG(13, 14)))
	bufs := [2]*tensor.Dense(newBufs(2))
	l := LExpressions(newBufs(len(mpo)), mpo, ms, bufs)
	r := RExpressions(newBufs(len(mpo)), mpo, ms, bufs)
	if cmplx.Abs(complex128(r-l)) > 1e-4*cmplx.Abs(complex128(l)) {
		t.Fatalf("%v, expected %v", r, l)
	}

	// The environments meeting at any bond contract to the same value.
	fl, fr := newBufs(len(mpo)), newBufs(len(mpo))
	LExpressions(fl, mpo, ms, bufs)
	RExpressions(fr, mpo, ms, bufs)
	for i := range len(mpo) - 1 {
		l2 := resetCopy(tensor.Zeros(1), fl[i]).Reshape(1, -1)
		r2 := resetCopy(tensor.Zeros(1), fr[i+1]).Reshape(-1, 1)
		v := complex128(scalar(tensor.Contract(tensor.Zeros(1), l2, r2, [][2]int{{1, 0}})))
		if cmplx.Abs(v-complex128(l)) > 1e-4*cmplx.Abs(complex128(l)) {
			t.Fatalf("%d %v, expected %v", i, v, l)
		}
	}
}

func TestSearchGroundStateNotConverged(t *testing.T) {
	t.Parallel()
	mpo := Heisenberg(6, [3]float64{1, 1, 1}, 0)
	ms := RandMPS(mpo, 2, rand.New(rand.NewPCG(15, 16)))
	opt := NewSearchGroundStateOptions().MaxIterations(1).Tol(1e-30)
	err := SearchGroundState(newBufs(len(mpo)), mpo, ms, [10]*tensor.Dense(newBufs(10)), opt)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "not converged after 1 sweeps") {
		t.Fatalf("%+v", err)
	}
}

func TestDense(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dims []int
	}{
		{dims: []int{2}},
		{dims: []int{2, 2}},
		{dims: []int{2, 2, 2, 2}},
		{dims: []int{3, 2, 4}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.dims), func(t *testing.T) {
			t.Parallel()
			k := quantum.RandKet(quantum.NumStates(test.dims), rand.New(rand.NewPCG(3, 4)))
			state, err := FromKet(k, test.dims)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			ms := NewMPS(state, [2]*tensor.Dense(newBufs(2)))
			if len(ms) != len(test.dims) {
				t.Fatalf("%d, expected %d", len(ms), len(test.dims))
			}

			dense := Dense(ms)
			for i, v := range dense {
				if cmplx.Abs(v-k[i]) > 1e-5 {
					t.Fatalf("%d %v, expected %v", i, v, k[i])
				}
			}
		})
	}
}

func TestRandState(t *testing.T) {
	t.Parallel()
	ms := RandState(5, 2, 3, rand.New(rand.NewPCG(5, 6)))
	bonds := []int{1, 2, 3, 3, 2, 1}
	for i, m := range ms {
		s := m.Shape()
		if s[mpsLeftAxis] != bonds[i] || s[mpsUpAxis] != 2 || s[mpsRightAxis] != bonds[i+1] {
			t.Fatalf("%d %v, expected %v", i, s, bonds[i:i+2])
		}
	}
	if n := quantum.Norm(Dense(ms)); math.Abs(n-1) > 1e-5 {
		t.Fatalf("%f", n)
	}
}

func TestFitGradient(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 8))
	ms := RandState(3, 2, 2, rng)
	target := quantum.RandKet(8, rng)
	fp, x, err := newFitProblem(target, ms)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	grad := make([]float64, len(x))
	fp.lossGrad(x, grad)
	const h = 1e-6
	for i := range x {
		xi := x[i]
		x[i] = xi + h
		fPlus := fp.lossGrad(x, nil)
		x[i] = xi - h
		fMinus := fp.lossGrad(x, nil)
		x[i] = xi

		numerical := (fPlus - fMinus) / (2 * h)
		if math.Abs(grad[i]-numerical) > 1e-6 {
			t.Fatalf("%d %f, expected %f", i, grad[i], numerical)
		}
	}
}

func TestFit(t *testing.T) {
	t.Parallel()
	gs, err := mat.GroundState(denseHeisenberg(4, [3]float64{1, 1, 1}, 0))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	target := quantum.Normalize(gs.Vec)

	tests := []struct {
		opt FitOptions
	}{
		{opt: NewFitOptions().Method(Adam).Iterations(20000).Tol(1e-7)},
		{opt: NewFitOptions().Method(LBFGS).Iterations(2000).Tol(1e-14)},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.opt.method), func(t *testing.T) {
			t.Parallel()
			ms := RandState(4, 2, 4, rand.New(rand.NewPCG(9, 10)))
			initLoss := 1 - quantum.Fidelity(target, Dense(ms))

			res, err := Fit(target, ms, test.opt)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if res.Loss > 1e-6 {
				t.Fatalf("%g %s, initial %f", res.Loss, res.Status, initLoss)
			}
			if len(res.Losses) == 0 {
				t.Fatalf("no losses")
			}

			psi := Dense(ms)
			if n := quantum.Norm(psi); math.Abs(n-1) > 1e-4 {
				t.Fatalf("%f", n)
			}
			if loss := 1 - quantum.Fidelity(target, psi); loss > 1e-4 {
				t.Fatalf("%f, expected %f", loss, res.Loss)
			}
		})
	}
}

func TestFitStatus(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(17, 18))
	target := quantum.RandKet(16, rng)
	tests := []struct {
		tol    float64
		iters  int
		status string
		losses int
	}{
		{tol: 2, iters: 10, status: "FunctionThreshold", losses: 1},
		{tol: 0, iters: 10, status: "IterationLimit", losses: 10},
	}
	for _, test := range tests {
		ms := RandState(4, 2, 2, rng)
		opt := NewFitOptions().Method(Adam).Iterations(test.iters).Tol(test.tol)
		res, err := Fit(target, ms, opt)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if res.Status != test.status {
			t.Fatalf("%s, expected %s", res.Status, test.status)
		}
		if len(res.Losses) != test.losses {
			t.Fatalf("%d, expected %d", len(res.Losses), test.losses)
		}
	}
}

func TestFitError(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(11, 12))
	ms := RandState(4, 2, 2, rng)
	if _, err := Fit(quantum.RandKet(8, rng), ms); err == nil {
		t.Fatalf("expected error")
	}
	unnormalized := quantum.RandKet(16, rng)
	for i := range unnormalized {
		unnormalized[i] *= 2
	}
	if _, err := Fit(unnormalized, ms); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseMethod("sgd"); err == nil {
		t.Fatalf("expected error")
	}
}
