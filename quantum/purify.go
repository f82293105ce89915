package quantum

import (
	"math"

	"github.com/pkg/errors"
	gomat "gonum.org/v1/gonum/mat"

	"github.com/fumin/qheis/mat"
)

// Purify returns a pure state of the system and an ancilla of the same dimension,
// whose reduced density matrix on the system is rho.
// The system is the most significant factor of the result.
func Purify(rho *gomat.CDense) (Ket, error) {
	d, c := rho.Dims()
	if d != c {
		return nil, errors.Errorf("not square %d %d", d, c)
	}
	vvs, err := mat.Eigh(COO(rho))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	k := make(Ket, d*d)
	for a, vv := range vvs {
		p := real(vv.Val)
		if p < -1e-10 {
			return nil, errors.Errorf("negative eigenvalue %f", p)
		}
		if p <= 0 {
			continue
		}
		sp := complex(math.Sqrt(p), 0)
		for s, v := range vv.Vec {
			k[s*d+a] = sp * v
		}
	}
	return k, nil
}
