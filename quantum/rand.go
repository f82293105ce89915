package quantum

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	gomat "gonum.org/v1/gonum/mat"

	"github.com/fumin/qheis/mat"
)

// RandKet returns a random normalized ket of dimension d.
func RandKet(d int, rng *rand.Rand) Ket {
	k := make(Ket, d)
	for i := range k {
		k[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	return Normalize(k)
}

// RandProductState returns the product of n random qubits.
func RandProductState(n int, rng *rand.Rand) Ket {
	k := Ket{1}
	for range n {
		q := RandKet(2, rng)
		next := make(Ket, 0, len(k)*2)
		for _, v := range k {
			next = append(next, v*q[0], v*q[1])
		}
		k = next
	}
	return k
}

// RandHerm returns a random hermitian matrix with normally distributed elements.
func RandHerm(d int, rng *rand.Rand) *mat.COO {
	a := randMatrix(d, rng)
	dense := make([][]complex128, d)
	for i := range dense {
		dense[i] = make([]complex128, d)
		for j := range dense[i] {
			dense[i][j] = (a[i][j] + cmplx.Conj(a[j][i])) / 2
		}
	}
	return mat.M(dense)
}

// RandPos returns a random positive semidefinite matrix A A^†, with A scaled so that the spectrum lies in [0, 1] for large d.
func RandPos(d int, rng *rand.Rand) *gomat.CDense {
	a := randMatrix(d, rng)
	scale := complex(1/math.Sqrt(float64(2*d)), 0)
	pos := gomat.NewCDense(d, d, nil)
	for i := range d {
		for j := range d {
			var v complex128
			for k := range d {
				v += a[i][k] * cmplx.Conj(a[j][k])
			}
			pos.Set(i, j, v*scale*scale)
		}
	}
	return pos
}

// RandRho returns a random density matrix A A^† / Tr(A A^†).
func RandRho(d int, rng *rand.Rand) *gomat.CDense {
	rho := RandPos(d, rng)
	tr := Trace(rho)
	for i := range d {
		for j := range d {
			rho.Set(i, j, rho.At(i, j)/tr)
		}
	}
	return rho
}

// RandUni returns a random unitary of order d, distributed according to the Haar measure.
func RandUni(d int, rng *rand.Rand) *gomat.CDense {
	return orthonormalize(randMatrix(d, rng), d, d)
}

// RandHaarState returns a random ket of dimension d, distributed according to the Haar measure.
func RandHaarState(d int, rng *rand.Rand) Ket {
	u := RandUni(d, rng)
	k := make(Ket, d)
	for i := range k {
		k[i] = u.At(i, 0)
	}
	return k
}

// RandIso returns a random isometry of shape n by m.
// Its columns are orthonormal if n >= m, otherwise its rows are.
func RandIso(n, m int, rng *rand.Rand) *gomat.CDense {
	if n >= m {
		return orthonormalize(randRect(n, m, rng), n, m)
	}
	q := orthonormalize(randRect(m, n, rng), m, n)
	iso := gomat.NewCDense(n, m, nil)
	for i := range n {
		for j := range m {
			iso.Set(i, j, q.At(j, i))
		}
	}
	return iso
}

// RandSeparable returns a random separable mixed state on sites of dimensions dims,
// the weighted sum of numMix products of random single site density matrices.
func RandSeparable(dims []int, numMix int, rng *rand.Rand) *gomat.CDense {
	d := NumStates(dims)
	sum := mat.COOZeros(d, d)
	var total float64
	for range numMix {
		w := rng.Float64()
		total += w
		sites := make([]*mat.COO, 0, len(dims))
		for _, di := range dims {
			sites = append(sites, COO(RandRho(di, rng)))
		}
		sum.Add(complex(w, 0), mat.KronAll(sites...))
	}
	return CDense(sum.Scale(complex(1/total, 0)))
}

// RandMix returns a random mixed state of dimension d, obtained by tracing out an environment of dimension d from a random pure state.
func RandMix(d int, rng *rand.Rand) *gomat.CDense {
	k := RandKet(d*d, rng)
	rho, err := PartialTrace(k, []int{d, d}, []int{0})
	if err != nil {
		panic(err)
	}
	return rho
}

func randMatrix(d int, rng *rand.Rand) [][]complex128 {
	return randRect(d, d, rng)
}

func randRect(rows, cols int, rng *rand.Rand) [][]complex128 {
	a := make([][]complex128, rows)
	for i := range a {
		a[i] = make([]complex128, cols)
		for j := range a[i] {
			a[i][j] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
	}
	return a
}

// orthonormalize returns the Q factor of the QR decomposition of the rows by cols matrix a, rows >= cols.
// The diagonal of R is positive, which makes Q Haar distributed when a has i.i.d. normal elements.
func orthonormalize(a [][]complex128, rows, cols int) *gomat.CDense {
	q := gomat.NewCDense(rows, cols, nil)
	col := make([]complex128, rows)
	for j := range cols {
		for i := range rows {
			col[i] = a[i][j]
		}
		// Project twice for numerical orthogonality.
		for range 2 {
			for k := range j {
				var dot complex128
				for i := range rows {
					dot += cmplx.Conj(q.At(i, k)) * col[i]
				}
				for i := range rows {
					col[i] -= dot * q.At(i, k)
				}
			}
		}
		n := Norm(col)
		for i := range rows {
			q.Set(i, j, col[i]/complex(n, 0))
		}
	}
	return q
}
