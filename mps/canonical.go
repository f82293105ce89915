package mps

import (
	"github.com/fumin/tensor"
)

// LeftNormalize brings ms into left canonical form, leaving the norm of the state in the last site.
func LeftNormalize(ms []*tensor.Dense, bufs [3]*tensor.Dense) {
	for i := range len(ms) - 1 {
		leftCanonical(ms, i, bufs[:])
	}
}

// leftCanonical makes site i left normalized with a QR decomposition, and pushes R into site i+1.
// See Section 4.4.1 Generation of a left-canonical MPS, Ulrich Schollwock.
func leftCanonical(ms []*tensor.Dense, i int, bufs []*tensor.Dense) {
	s := ms[i].Shape()
	left, d := s[mpsLeftAxis], s[mpsUpAxis]

	q := bufs[0]
	r := tensor.QR(q, ms[i].Reshape(left*d, s[mpsRightAxis]), [2]*tensor.Dense{bufs[1], bufs[2]})
	resetCopy(ms[i+1], tensor.Contract(bufs[1], r, ms[i+1], [][2]int{{1, mpsLeftAxis}}))

	ms[i] = resetCopy(ms[i], q).Reshape(left, d, -1)
}

// rightCanonical makes site i right normalized with an LQ decomposition, and pushes L into site i-1.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func rightCanonical(ms []*tensor.Dense, i int, bufs []*tensor.Dense) {
	s := ms[i].Shape()
	d, right := s[mpsUpAxis], s[mpsRightAxis]

	// ms[i] = l @ q.H
	q := bufs[0]
	l := lq(q, ms[i].Reshape(s[mpsLeftAxis], d*right), [2]*tensor.Dense{bufs[1], bufs[2]})
	resetCopy(ms[i-1], tensor.Contract(bufs[1], ms[i-1], l, [][2]int{{mpsRightAxis, 0}}))

	ms[i] = resetCopy(ms[i], q.H()).Reshape(-1, d, right)
}

func lq(q, a *tensor.Dense, bufs [2]*tensor.Dense) *tensor.Dense {
	return tensor.QR(q, a.H(), bufs).H()
}
