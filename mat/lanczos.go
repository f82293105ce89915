package mat

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LanczosOptions are options for the Lanczos eigensolver.
type LanczosOptions struct {
	maxDim int
	tol    float64
	seed   uint64
	every  int
}

// NewLanczosOptions returns the default Lanczos options.
func NewLanczosOptions() LanczosOptions {
	opt := LanczosOptions{}
	opt.maxDim = 300
	opt.tol = 1e-10
	opt.seed = 1
	opt.every = 5
	return opt
}

// MaxDim sets the maximum dimension of the Krylov subspace.
func (opt LanczosOptions) MaxDim(d int) LanczosOptions {
	opt.maxDim = d
	return opt
}

// Tol sets the tolerance of the residual norm relative to the eigenvalue.
func (opt LanczosOptions) Tol(tol float64) LanczosOptions {
	opt.tol = tol
	return opt
}

// Seed sets the seed of the random starting vector.
func (opt LanczosOptions) Seed(seed uint64) LanczosOptions {
	opt.seed = seed
	return opt
}

// Lanczos returns the lowest eigenvalue and eigenvector of the hermitian matrix m.
// The Krylov basis is fully reorthogonalized at every step.
func Lanczos(m *COO, opt LanczosOptions) (ValVec, error) {
	n := m.rows
	if m.rows != m.cols {
		return ValVec{}, errors.Errorf("not square %d %d", m.rows, m.cols)
	}
	maxDim := min(opt.maxDim, n)

	rng := rand.New(rand.NewPCG(opt.seed, opt.seed^0x9e3779b97f4a7c15))
	v := make([]complex128, n)
	for i := range v {
		v[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	scaleVec(v, 1/vecNorm(v))

	basis := make([][]complex128, 0, maxDim)
	alphas := make([]float64, 0, maxDim)
	betas := make([]float64, 0, maxDim)
	w := make([]complex128, n)
	var residual float64 = math.Inf(1)
	var theta float64
	var y []float64
	for k := 0; k < maxDim; k++ {
		basis = append(basis, v)
		w = m.MulVec(w, v)
		alpha := real(vdot(v, w))
		alphas = append(alphas, alpha)

		axpy(w, complex(-alpha, 0), v)
		if k > 0 {
			axpy(w, complex(-betas[k-1], 0), basis[k-1])
		}
		// Full reorthogonalization, twice is enough.
		for range 2 {
			for _, b := range basis {
				axpy(w, -vdot(b, w), b)
			}
		}
		beta := vecNorm(w)

		invariant := beta < 1e-13
		if invariant || k == maxDim-1 || (k+1)%opt.every == 0 {
			var err error
			theta, y, err = lowestTridiagonal(alphas, betas)
			if err != nil {
				return ValVec{}, errors.Wrap(err, "")
			}
			residual = beta * math.Abs(y[len(y)-1])
			if invariant || residual < opt.tol*max(1, math.Abs(theta)) {
				break
			}
		}

		betas = append(betas, beta)
		v = make([]complex128, n)
		copy(v, w)
		scaleVec(v, 1/beta)
	}
	if !(residual < opt.tol*max(1, math.Abs(theta))) && len(basis) < n {
		return ValVec{}, errors.Errorf("not converged residual %g theta %f krylov %d", residual, theta, len(basis))
	}

	if theta < Gerschgorin(m)-opt.tol*max(1, math.Abs(theta)) {
		return ValVec{}, errors.Errorf("eigenvalue %f below Gerschgorin bound %f", theta, Gerschgorin(m))
	}

	vec := make([]complex128, n)
	for i, yi := range y {
		axpy(vec, complex(yi, 0), basis[i])
	}
	scaleVec(vec, 1/vecNorm(vec))
	return ValVec{Val: complex(theta, 0), Vec: vec}, nil
}

// lowestTridiagonal returns the lowest eigenpair of the symmetric tridiagonal matrix with diagonal alphas and off diagonal betas.
func lowestTridiagonal(alphas, betas []float64) (float64, []float64, error) {
	k := len(alphas)
	t := mat.NewSymDense(k, nil)
	for i, a := range alphas {
		t.SetSym(i, i, a)
		if i+1 < k {
			t.SetSym(i, i+1, betas[i])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(t, true); !ok {
		return math.NaN(), nil, errors.Errorf("eig.Factorize failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	lowest := floats.MinIdx(vals)
	y := mat.Col(nil, lowest, &vecs)
	return vals[lowest], y, nil
}

func vdot(x, y []complex128) complex128 {
	var s complex128
	for i, xi := range x {
		s += cmplx.Conj(xi) * y[i]
	}
	return s
}

func axpy(y []complex128, a complex128, x []complex128) {
	for i, xi := range x {
		y[i] += a * xi
	}
}

func scaleVec(x []complex128, c float64) {
	for i := range x {
		x[i] *= complex(c, 0)
	}
}

// Gerschgorin returns a lower bound of the eigenvalues of the hermitian m.
// Theorem A3, Bounds for the eigenvalues of a matrix, Kenneth R. Garren.
func Gerschgorin(m *COO) float64 {
	if len(m.Data) == 0 {
		return 0
	}

	lower := math.Inf(1)
	var curRow int = m.Data[0].row
	var curCenter complex128
	var curRadius float64
	for _, v := range m.Data {
		if v.row != curRow {
			lower = min(lower, real(curCenter)-curRadius)

			curRow = v.row
			curCenter = 0
			curRadius = 0
		}

		if v.row == v.col {
			curCenter = v.v
		} else {
			curRadius += cmplx.Abs(v.v)
		}
	}
	// Last current row.
	lower = min(lower, real(curCenter)-curRadius)

	// Rows without any element are circles centered at zero.
	if countRows(m) < m.rows {
		lower = min(lower, 0)
	}
	return lower
}

func countRows(m *COO) int {
	n := 0
	prev := -1
	for _, v := range m.Data {
		if v.row != prev {
			n++
			prev = v.row
		}
	}
	return n
}
