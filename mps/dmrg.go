package mps

import (
	"fmt"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SearchGroundStateOptions are options for the MPS ground state search algorithm.
type SearchGroundStateOptions struct {
	maxIterations int
	tol           float32
	logger        *zap.Logger
}

// NewSearchGroundStateOptions returns the default MPS ground state search options.
func NewSearchGroundStateOptions() SearchGroundStateOptions {
	opt := SearchGroundStateOptions{}
	opt.maxIterations = 32
	opt.tol = 1e-6
	opt.logger = zap.NewNop()
	return opt
}

// MaxIterations sets the maximum number of sweeps, each going right and then back left.
func (opt SearchGroundStateOptions) MaxIterations(i int) SearchGroundStateOptions {
	opt.maxIterations = i
	return opt
}

// Tol sets the tolerance of the convergence criterion <H^2> - (<H>)^2.
func (opt SearchGroundStateOptions) Tol(tol float32) SearchGroundStateOptions {
	opt.tol = tol
	return opt
}

// Logger sets the logger that receives the energy of every sweep.
func (opt SearchGroundStateOptions) Logger(logger *zap.Logger) SearchGroundStateOptions {
	opt.logger = logger
	return opt
}

// SearchGroundState minimizes <ms|ws|ms> by single site DMRG sweeps, until the energy variance falls below tol.
// fs receives the environments of ws, and are valid R expressions on return.
// See Section 6.3 Iterative ground state search, Ulrich Schollwock.
func SearchGroundState(fs, ws, ms []*tensor.Dense, bufs [10]*tensor.Dense, options ...SearchGroundStateOptions) error {
	opt := NewSearchGroundStateOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	checkChain(fs, ws, ms)

	// Start right canonical, so that the effective eigenvalue problem of site 0 is an ordinary one.
	for i := len(ms) - 1; i >= 1; i-- {
		rightCanonical(ms, i, bufs[:3])
	}
	bufs2 := [2]*tensor.Dense{bufs[0], bufs[1]}
	RExpressions(fs, ws, ms, bufs2)

	s := &sweeper{fs: fs, ws: ws, ms: ms, bufs: bufs}
	var variance complex64
	for i := range opt.maxIterations {
		for l := 0; l < len(ms)-1; l++ {
			if err := s.optimize(l, true); err != nil {
				return errors.Wrap(err, fmt.Sprintf("sweep %d site %d", i, l))
			}
		}
		for l := len(ms) - 1; l >= 1; l-- {
			if err := s.optimize(l, false); err != nil {
				return errors.Wrap(err, fmt.Sprintf("sweep %d site %d", i, l))
			}
		}

		norm2 := InnerProduct(ms, ms, bufs2)
		if abs(norm2) < epsilon {
			return errors.Errorf("vanishing norm %v", norm2)
		}
		// The left sweep ended with fs[1], so only site 0 remains.
		rExpression(fs[0], fs[1], ws[0], ms[0], bufs[:2])
		e := fs[0].At(0, 0, 0) / norm2
		e2 := H2(ws, ms, bufs2) / norm2
		variance = e2 - e*e
		opt.logger.Debug("sweep", zap.Int("i", i), zap.Float32("energy", real(e)), zap.Float32("variance", real(variance)))
		if abs(variance) < opt.tol*max(abs(e2), 1) {
			return nil
		}
	}
	return errors.Errorf("not converged after %d sweeps, variance %v", opt.maxIterations, variance)
}

// sweeper holds the state of a DMRG sweep.
// Sites left of the current one are left normalized, and those right of it right normalized,
// which keeps the eigenvalue problem of Equation 211 an ordinary one.
type sweeper struct {
	fs   []*tensor.Dense
	ws   []*tensor.Dense
	ms   []*tensor.Dense
	bufs [10]*tensor.Dense
}

// optimize replaces site l with the lowest eigenvector of its effective Hamiltonian,
// and moves the orthogonality center one site right or left.
func (s *sweeper) optimize(l int, right bool) error {
	var envL, envR *tensor.Dense
	if l > 0 {
		envL = s.fs[l-1]
	} else {
		envL = ones(s.fs[l], 1, 1, 1)
	}
	if l < len(s.ms)-1 {
		envR = s.fs[l+1]
	} else {
		envR = ones(s.fs[l], 1, 1, 1)
	}
	h := effectiveHamiltonian(s.bufs[0], envL, envR, s.ws[l], s.bufs[1:3])

	vals, vecs := s.bufs[1], s.bufs[2]
	if err := tensor.Arnoldi(vals, vecs, h, 1, [7]*tensor.Dense(s.bufs[3:])); err != nil {
		return errors.Wrap(err, "")
	}
	resetCopy(s.ms[l], vecs.Reshape(s.ms[l].Shape()...))

	// Normalizing site l modifies its neighbour, whose environment is then stale.
	if right {
		leftCanonical(s.ms, l, s.bufs[:3])
		s.fs[l+1].Reset(1)
		lExpression(s.fs[l], envL, s.ws[l], s.ms[l], s.bufs[:2])
	} else {
		rightCanonical(s.ms, l, s.bufs[:3])
		s.fs[l-1].Reset(1)
		rExpression(s.fs[l], envR, s.ws[l], s.ms[l], s.bufs[:2])
	}
	return nil
}

// effectiveHamiltonian returns the matrix H of Equation 210, Section 6.3 Iterative ground state search, Ulrich Schollwock.
// Its rows are indexed by {leftTop, mpoUp, rightTop} and its columns by {leftBot, mpoDown, rightBot}.
func effectiveHamiltonian(h, envL, envR, w *tensor.Dense, bufs []*tensor.Dense) *tensor.Dense {
	ls, ws, rs := envL.Shape(), w.Shape(), envR.Shape()
	if ls[0] != ls[2] || ws[mpoUpAxis] != ws[mpoDownAxis] || rs[0] != rs[2] {
		panic(fmt.Sprintf("%#v %#v %#v", ls, ws, rs))
	}

	// wr is of shape {mpoLeft, mpoUp, mpoDown, rightTop, rightBot}.
	wr := tensor.Contract(bufs[0], w, envR, [][2]int{{mpoRightAxis, 1}})
	// lwr is of shape {leftTop, leftBot, mpoUp, mpoDown, rightTop, rightBot}.
	lwr := tensor.Contract(bufs[1], envL, wr, [][2]int{{1, 0}})
	resetCopy(h, lwr.Transpose(0, 2, 4, 1, 3, 5))
	return h.Reshape(ls[0]*ws[mpoUpAxis]*rs[0], ls[2]*ws[mpoDownAxis]*rs[2])
}
