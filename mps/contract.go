package mps

import (
	"fmt"

	"github.com/fumin/tensor"
)

// InnerProduct returns <x|y>, contracting site by site from the left.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}

	// env is of shape {xRight, yRight}.
	env := ones(bufs[0], 1, 1)
	for i, yi := range y {
		// ey is of shape {xRight, yUp, yRight}.
		ey := tensor.Contract(bufs[1], env, yi, [][2]int{{1, mpsLeftAxis}})
		tensor.Contract(env, x[i].Conj(), ey, [][2]int{{mpsLeftAxis, 0}, {mpsUpAxis, 1}})
	}
	return scalar(env)
}

// LExpressions builds the L expressions of Equation 192, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock,
// storing the one ending at site i in fs[i].
// It returns <ms|ws|ms>.
func LExpressions(fs, ws, ms []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	checkChain(fs, ws, ms)
	env := ones(fs[0], 1, 1, 1)
	for i, w := range ws {
		env = lExpression(fs[i], env, w, ms[i], bufs[:])
	}
	return scalar(env)
}

// RExpressions builds the R expressions of Equation 193, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock,
// storing the one starting at site i in fs[i].
// It returns <ms|ws|ms>.
func RExpressions(fs, ws, ms []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	checkChain(fs, ws, ms)
	env := ones(fs[len(fs)-1], 1, 1, 1)
	for i := len(ws) - 1; i >= 0; i-- {
		env = rExpression(fs[i], env, ws[i], ms[i], bufs[:])
	}
	return scalar(env)
}

// lExpression extends the left environment prev, of shape {mpsRight.conj, mpoRight, mpsRight}, by one site into dst.
// prev and dst may be the same tensor.
func lExpression(dst, prev, w, m *tensor.Dense, bufs []*tensor.Dense) *tensor.Dense {
	// pm is of shape {top, mid, mpsUp, mpsRight}.
	pm := tensor.Contract(bufs[0], prev, m, [][2]int{{2, mpsLeftAxis}})
	// wpm is of shape {mpoRight, mpoUp, top, mpsRight}.
	wpm := tensor.Contract(bufs[1], w, pm, [][2]int{{mpoDownAxis, 2}, {mpoLeftAxis, 1}})
	tensor.Contract(dst, m.Conj(), wpm, [][2]int{{mpsLeftAxis, 2}, {mpsUpAxis, 1}})
	return dst
}

// rExpression extends the right environment prev, of shape {mpsLeft.conj, mpoLeft, mpsLeft}, by one site into dst.
// prev and dst may be the same tensor.
func rExpression(dst, prev, w, m *tensor.Dense, bufs []*tensor.Dense) *tensor.Dense {
	// pm is of shape {top, mid, mpsLeft, mpsUp}.
	pm := tensor.Contract(bufs[0], prev, m, [][2]int{{2, mpsRightAxis}})
	// wpm is of shape {mpoLeft, mpoUp, top, mpsLeft}.
	wpm := tensor.Contract(bufs[1], w, pm, [][2]int{{mpoDownAxis, 3}, {mpoRightAxis, 1}})
	tensor.Contract(dst, m.Conj(), wpm, [][2]int{{mpsRightAxis, 2}, {mpsUpAxis, 1}})
	return dst
}

// H2 returns <ms|ws^2|ms>, by threading two copies of the MPO through one environment.
// See Figure 44, Section 6.4 Conventional DMRG in MPS language: the subtle differences, Ulrich Schollwock.
func H2(ws, ms []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	if len(ws) != len(ms) {
		panic(fmt.Sprintf("%d %d", len(ws), len(ms)))
	}

	// env is of shape {top, mid2, mid, bottom}.
	env := ones(bufs[0], 1, 1, 1, 1)
	for i, w := range ws {
		m := ms[i]
		// em is of shape {top, mid2, mid, mpsUp, mpsRight}.
		em := tensor.Contract(bufs[1], env, m, [][2]int{{3, mpsLeftAxis}})
		// wem is of shape {mpoRight, mpoUp, top, mid2, mpsRight}.
		wem := tensor.Contract(bufs[0], w, em, [][2]int{{mpoDownAxis, 3}, {mpoLeftAxis, 2}})
		// wwem is of shape {mpoRight2, mpoUp2, mpoRight, top, mpsRight}.
		wwem := tensor.Contract(bufs[1], w, wem, [][2]int{{mpoDownAxis, 1}, {mpoLeftAxis, 3}})
		env = tensor.Contract(bufs[0], m.Conj(), wwem, [][2]int{{mpsLeftAxis, 3}, {mpsUpAxis, 1}})
	}
	return scalar(env)
}

func checkChain(fs, ws, ms []*tensor.Dense) {
	if len(fs) != len(ws) || len(ws) != len(ms) {
		panic(fmt.Sprintf("%d %d %d", len(fs), len(ws), len(ms)))
	}
}
