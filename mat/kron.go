package mat

import (
	"fmt"
	"slices"
)

// IKron embeds op into the tensor product space with local dimensions dims.
// If op acts on a single site, a copy of op is placed at every site in inds.
// Otherwise op must act on the contiguous sites inds, and its dimension must equal the product of their local dimensions.
// Identities are placed on all other sites.
func IKron(op *COO, dims []int, inds ...int) *COO {
	m := COOZeros(1, 1)
	IKronTo(m, op, dims, inds...)
	return m
}

// IKronTo is IKron writing its result into dst.
func IKronTo(dst Matrix, op *COO, dims []int, inds ...int) {
	if op.rows != op.cols {
		panic(fmt.Sprintf("not square %d %d", op.rows, op.cols))
	}
	if len(inds) == 0 {
		panic("no sites")
	}
	for _, i := range inds {
		if i < 0 || i >= len(dims) {
			panic(fmt.Sprintf("site %d out of range %v", i, dims))
		}
	}

	spanD := 1
	for _, i := range inds {
		spanD *= dims[i]
	}
	var spanning bool
	switch {
	case len(inds) > 1 && op.rows == spanD:
		spanning = true
		for k := 1; k < len(inds); k++ {
			if inds[k] != inds[k-1]+1 {
				panic(fmt.Sprintf("sites not contiguous %v", inds))
			}
		}
	default:
		for _, i := range inds {
			if dims[i] != op.rows {
				panic(fmt.Sprintf("dimension mismatch %d at site %d of %v", op.rows, i, dims))
			}
		}
	}

	dst.Scalar(1)
	for site := 0; site < len(dims); site++ {
		switch {
		case spanning && site == inds[0]:
			dst.Kron(op)
			site += len(inds) - 1
		case !spanning && slices.Contains(inds, site):
			dst.Kron(op)
		default:
			dst.Kron(COOIdentity(dims[site]))
		}
	}
}

// KronPow returns the n-fold Kronecker product of a with itself.
func KronPow(a *COO, n int) *COO {
	m := COOZeros(1, 1)
	m.Scalar(1)
	for range n {
		m.Kron(a)
	}
	return m
}

// KronAll returns the Kronecker product of ms in order.
func KronAll(ms ...*COO) *COO {
	m := COOZeros(1, 1)
	m.Scalar(1)
	for _, b := range ms {
		m.Kron(b)
	}
	return m
}
