package mps

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/fumin/qheis/mat/util"
	"github.com/fumin/qheis/quantum"
)

const (
	// targetNormTol is how far the norm of a fit target may be from 1.
	targetNormTol = 1e-6
)

// Method is the optimizer of Fit.
type Method int

const (
	Adam Method = iota
	LBFGS
)

func (m Method) String() string {
	switch m {
	case Adam:
		return "adam"
	case LBFGS:
		return "lbfgs"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod parses the name of a method.
func ParseMethod(s string) (Method, error) {
	for _, m := range []Method{Adam, LBFGS} {
		if m.String() == s {
			return m, nil
		}
	}
	return -1, errors.Errorf("unknown method %q", s)
}

// FitOptions are options for Fit.
type FitOptions struct {
	method       Method
	iterations   int
	tol          float64
	learningRate float64
	beta1        float64
	beta2        float64
	eps          float64
	logger       *zap.Logger
	logPeriod    time.Duration
}

// NewFitOptions returns the default fit options.
func NewFitOptions() FitOptions {
	opt := FitOptions{}
	opt.method = Adam
	opt.iterations = 1000
	opt.tol = 1e-10
	opt.learningRate = 0.01
	opt.beta1 = 0.9
	opt.beta2 = 0.999
	opt.eps = 1e-8
	opt.logger = zap.NewNop()
	opt.logPeriod = time.Second
	return opt
}

// Method sets the optimizer.
func (opt FitOptions) Method(m Method) FitOptions {
	opt.method = m
	return opt
}

// Iterations sets the maximum number of iterations.
func (opt FitOptions) Iterations(i int) FitOptions {
	opt.iterations = i
	return opt
}

// Tol sets the loss below which Adam stops, and the loss improvement below which LBFGS stops.
func (opt FitOptions) Tol(tol float64) FitOptions {
	opt.tol = tol
	return opt
}

// LearningRate sets the learning rate of Adam.
func (opt FitOptions) LearningRate(lr float64) FitOptions {
	opt.learningRate = lr
	return opt
}

// Moments sets the decay rates beta1, beta2 and the epsilon of Adam.
func (opt FitOptions) Moments(beta1, beta2, eps float64) FitOptions {
	opt.beta1 = beta1
	opt.beta2 = beta2
	opt.eps = eps
	return opt
}

// Logger sets the logger that receives the training progress.
func (opt FitOptions) Logger(logger *zap.Logger, period time.Duration) FitOptions {
	opt.logger = logger
	opt.logPeriod = period
	return opt
}

// FitResult is the outcome of Fit.
type FitResult struct {
	// Loss is the final value of 1 - |<target|psi>|^2 / <psi|psi>.
	Loss float64
	// Losses is the loss at every iteration.
	Losses []float64
	Status string
}

// Fit fits the MPS ms to the dense ket target by minimizing the infidelity 1 - |<target|psi>|^2 / <psi|psi>.
// target must be normalized.
// On return ms holds the fitted state, normalized and in left canonical form.
func Fit(target []complex128, ms []*tensor.Dense, options ...FitOptions) (FitResult, error) {
	opt := NewFitOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	fp, x, err := newFitProblem(target, ms)
	if err != nil {
		return FitResult{}, errors.Wrap(err, "")
	}
	if loss := fp.lossGrad(x, nil); math.IsNaN(loss) {
		return FitResult{}, errors.Errorf("zero norm initial state")
	}

	var res FitResult
	switch opt.method {
	case Adam:
		res = fitAdam(fp, x, opt)
	case LBFGS:
		res, err = fitLBFGS(fp, x, opt)
		if err != nil {
			return FitResult{}, errors.Wrap(err, "")
		}
	default:
		return FitResult{}, errors.Errorf("%v", opt.method)
	}

	fp.writeTo(ms, x)
	Normalize(ms)
	return res, nil
}

func fitAdam(fp *fitProblem, x []float64, opt FitOptions) FitResult {
	throttler := util.NewSkipThrottler(opt.logPeriod)
	ad := newAdam(len(x), opt)
	grad := make([]float64, len(x))
	res := FitResult{Status: "IterationLimit"}
	for i := range opt.iterations {
		loss := fp.lossGrad(x, grad)
		res.Losses = append(res.Losses, loss)
		if throttler.Ok() {
			opt.logger.Info("fit", zap.Stringer("method", opt.method), zap.Int("iteration", i), zap.Float64("loss", loss))
		}
		if loss < opt.tol {
			res.Status = "FunctionThreshold"
			break
		}
		ad.step(x, grad)
	}
	res.Loss = fp.lossGrad(x, nil)
	return res
}

func fitLBFGS(fp *fitProblem, x []float64, opt FitOptions) (FitResult, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return fp.lossGrad(x, nil) },
		Grad: func(grad, x []float64) { fp.lossGrad(x, grad) },
	}
	rec := &lossRecorder{method: opt.method, logger: opt.logger, throttler: util.NewSkipThrottler(opt.logPeriod)}
	settings := &optimize.Settings{
		MajorIterations: opt.iterations,
		Converger:       &optimize.FunctionConverge{Absolute: opt.tol, Iterations: 20},
		Recorder:        rec,
	}
	result, err := optimize.Minimize(problem, x, settings, &optimize.LBFGS{})
	if result == nil {
		return FitResult{}, errors.Wrap(err, "")
	}
	if math.IsNaN(result.F) {
		return FitResult{}, errors.Errorf("%v %v", result.Status, err)
	}
	// A failed line search still leaves the best location found in result.
	if err != nil {
		opt.logger.Warn("lbfgs", zap.Error(err))
	}
	copy(x, result.X)
	return FitResult{Loss: result.F, Losses: rec.losses, Status: result.Status.String()}, nil
}

type lossRecorder struct {
	method    Method
	logger    *zap.Logger
	throttler *util.SkipThrottler
	losses    []float64
}

func (r *lossRecorder) Init() error { return nil }

func (r *lossRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	r.losses = append(r.losses, loc.F)
	if r.throttler.Ok() {
		r.logger.Info("fit", zap.Stringer("method", r.method), zap.Int("iteration", stats.MajorIterations), zap.Float64("loss", loc.F))
	}
	return nil
}

type adam struct {
	lr, beta1, beta2, eps float64
	m, v                  []float64
	t                     int
}

func newAdam(n int, opt FitOptions) *adam {
	return &adam{
		lr:    opt.learningRate,
		beta1: opt.beta1,
		beta2: opt.beta2,
		eps:   opt.eps,
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

func (ad *adam) step(x, grad []float64) {
	ad.t++
	c1 := 1 - math.Pow(ad.beta1, float64(ad.t))
	c2 := 1 - math.Pow(ad.beta2, float64(ad.t))
	for i, g := range grad {
		ad.m[i] = ad.beta1*ad.m[i] + (1-ad.beta1)*g
		ad.v[i] = ad.beta2*ad.v[i] + (1-ad.beta2)*g*g
		mHat := ad.m[i] / c1
		vHat := ad.v[i] / c2
		x[i] -= ad.lr * mHat / (math.Sqrt(vHat) + ad.eps)
	}
}

// fitSite is the shape of a site tensor, and its offset in the parameter vector in units of complex numbers.
type fitSite struct {
	l, p, r int
	off     int
}

// fitProblem evaluates the infidelity and its gradient with respect to the real and imaginary parts of all site tensor elements.
// The parameters of element (a, s, b) of site k are at 2*(off_k + (a*p+s)*r + b) and the next index.
type fitProblem struct {
	target []complex128
	sites  []fitSite
	dims   []int

	psi    []complex128
	digits []int
	// left[k] is the row vector A_0[s_0] ... A_{k-1}[s_{k-1}].
	left [][]complex128
	// right[k] is the column vector A_k[s_k] ... A_{n-1}[s_{n-1}].
	right [][]complex128
}

func newFitProblem(target []complex128, ms []*tensor.Dense) (*fitProblem, []float64, error) {
	if len(ms) == 0 {
		return nil, nil, errors.Errorf("empty mps")
	}
	fp := &fitProblem{target: target}
	size, states := 0, 1
	for k, m := range ms {
		s := m.Shape()
		if len(s) != 3 {
			return nil, nil, errors.Errorf("site %d shape %v", k, s)
		}
		if k > 0 && s[mpsLeftAxis] != fp.sites[k-1].r {
			return nil, nil, errors.Errorf("site %d shape %v previous %#v", k, s, fp.sites[k-1])
		}
		site := fitSite{l: s[mpsLeftAxis], p: s[mpsUpAxis], r: s[mpsRightAxis], off: size}
		fp.sites = append(fp.sites, site)
		fp.dims = append(fp.dims, site.p)
		size += site.l * site.p * site.r
		states *= site.p
	}
	if fp.sites[0].l != 1 || fp.sites[len(ms)-1].r != 1 {
		return nil, nil, errors.Errorf("open boundaries %#v %#v", fp.sites[0], fp.sites[len(ms)-1])
	}
	if len(target) != states {
		return nil, nil, errors.Errorf("target length %d mps dims %v", len(target), fp.dims)
	}
	if norm := quantum.Norm(target); math.Abs(norm-1) > targetNormTol {
		return nil, nil, errors.Errorf("target not normalized %f", norm)
	}

	fp.psi = make([]complex128, states)
	fp.digits = make([]int, len(ms))
	fp.left = make([][]complex128, len(ms)+1)
	fp.right = make([][]complex128, len(ms)+1)
	for k, site := range fp.sites {
		fp.left[k] = make([]complex128, site.l)
		fp.right[k] = make([]complex128, site.l)
	}
	fp.left[len(ms)] = make([]complex128, 1)
	fp.right[len(ms)] = []complex128{1}

	x := make([]float64, 2*size)
	for k, site := range fp.sites {
		for a := range site.l {
			for s := range site.p {
				for b := range site.r {
					v := ms[k].At(a, s, b)
					j := site.index(a, s, b)
					x[2*j], x[2*j+1] = float64(real(v)), float64(imag(v))
				}
			}
		}
	}
	return fp, x, nil
}

func (site fitSite) index(a, s, b int) int {
	return site.off + (a*site.p+s)*site.r + b
}

func (fp *fitProblem) writeTo(ms []*tensor.Dense, x []float64) {
	for k, site := range fp.sites {
		for a := range site.l {
			for s := range site.p {
				for b := range site.r {
					j := site.index(a, s, b)
					ms[k].SetAt([]int{a, s, b}, complex64(complex(x[2*j], x[2*j+1])))
				}
			}
		}
	}
}

// lossGrad returns the infidelity at x.
// If grad is not nil, the gradient is written into it.
func (fp *fitProblem) lossGrad(x, grad []float64) float64 {
	var overlap complex128
	var norm2 float64
	for idx := range fp.psi {
		fp.setDigits(idx)
		fp.contractLeft(x)
		psi := fp.left[len(fp.sites)][0]
		fp.psi[idx] = psi
		overlap += cmplx.Conj(fp.target[idx]) * psi
		norm2 += real(psi)*real(psi) + imag(psi)*imag(psi)
	}
	if norm2 == 0 {
		return math.NaN()
	}
	o2 := real(overlap)*real(overlap) + imag(overlap)*imag(overlap)
	loss := 1 - o2/norm2
	if grad == nil {
		return loss
	}

	// The Wirtinger derivative of the loss with respect to the conjugate of an element z of site k is
	// Σ_s c_s conj(left_k(a)) conj(right_{k+1}(b)), summed over the basis states s whose digit s_k matches z.
	clear(grad)
	for idx, psi := range fp.psi {
		c := -(overlap*fp.target[idx]/complex(norm2, 0) - complex(o2/(norm2*norm2), 0)*psi)
		if c == 0 {
			continue
		}
		fp.setDigits(idx)
		fp.contractLeft(x)
		fp.contractRight(x)
		for k, site := range fp.sites {
			s := fp.digits[k]
			for a, la := range fp.left[k] {
				cl := c * cmplx.Conj(la)
				for b, rb := range fp.right[k+1] {
					g := cl * cmplx.Conj(rb)
					j := site.index(a, s, b)
					grad[2*j] += 2 * real(g)
					grad[2*j+1] += 2 * imag(g)
				}
			}
		}
	}
	return loss
}

func (fp *fitProblem) setDigits(idx int) {
	for k := len(fp.dims) - 1; k >= 0; k-- {
		fp.digits[k] = idx % fp.dims[k]
		idx /= fp.dims[k]
	}
}

func (fp *fitProblem) contractLeft(x []float64) {
	fp.left[0][0] = 1
	for k, site := range fp.sites {
		s := fp.digits[k]
		next := fp.left[k+1]
		for b := range site.r {
			var v complex128
			for a, la := range fp.left[k] {
				j := site.index(a, s, b)
				v += la * complex(x[2*j], x[2*j+1])
			}
			next[b] = v
		}
	}
}

func (fp *fitProblem) contractRight(x []float64) {
	for k := len(fp.sites) - 1; k >= 0; k-- {
		site := fp.sites[k]
		s := fp.digits[k]
		prev := fp.right[k+1]
		for a := range site.l {
			var v complex128
			for b, rb := range prev {
				j := site.index(a, s, b)
				v += complex(x[2*j], x[2*j+1]) * rb
			}
			fp.right[k][a] = v
		}
	}
}
