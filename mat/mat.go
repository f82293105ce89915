// Package mat implements sparse complex matrices for building and solving spin Hamiltonians.
package mat

import (
	"cmp"
	"fmt"
	"math/cmplx"
	"slices"
	"strconv"
	"strings"
)

var (
	PauliX = [][]complex128{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex128{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex128{
		{1, 0},
		{0, -1},
	}
)

// Matrix is a matrix that can be built up by Kronecker products and sums.
// It is implemented by the in-memory COO and the sqlite backed DiskMatrix.
type Matrix interface {
	Zeros(int, int)
	Scalar(complex128)
	Rows() int
	Cols() int

	Add(complex128, Matrix)
	Kron(*COO)
	COO() *COO

	WriteCOO(string) error
}

type vRowCol struct {
	v   complex128
	row int
	col int
}

// COO is a sparse matrix in coordinate format.
// Data is sorted in row major order and contains no zeros.
type COO struct {
	rows int
	cols int
	Data []vRowCol

	m map[[2]int]complex128
}

func M(dense [][]complex128) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0), m: make(map[[2]int]complex128)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

func COOZeros(rows, cols int) *COO {
	m := M([][]complex128{{0}})
	m.Zeros(rows, cols)
	return m
}

func COOIdentity(rows int) *COO {
	m := M([][]complex128{{0}})
	m.Zeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, vRowCol{v: 1, row: i, col: i})
	}
	return m
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

func (m *COO) NumNonZero() int { return len(m.Data) }

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

func (m *COO) Scalar(v complex128) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	m.Data = append(m.Data, vRowCol{v: v, row: 0, col: 0})
}

// Copy returns a deep copy of m.
func (m *COO) Copy() *COO {
	c := &COO{rows: m.rows, cols: m.cols, Data: slices.Clone(m.Data), m: make(map[[2]int]complex128)}
	return c
}

// Scale multiplies every element by c.
func (m *COO) Scale(c complex128) *COO {
	for i := range m.Data {
		m.Data[i].v *= c
	}
	m.Data = slices.DeleteFunc(m.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	return m
}

// At returns the element at row i and column j.
func (m *COO) At(i, j int) complex128 {
	k, ok := slices.BinarySearchFunc(m.Data, [2]int{i, j}, func(v vRowCol, ij [2]int) int {
		if c := cmp.Compare(v.row, ij[0]); c != 0 {
			return c
		}
		return cmp.Compare(v.col, ij[1])
	})
	if !ok {
		return 0
	}
	return m.Data[k].v
}

// All iterates over the nonzero elements in row major order.
func (m *COO) All() func(yield func([2]int, complex128) bool) {
	return func(yield func([2]int, complex128) bool) {
		for _, v := range m.Data {
			if !yield([2]int{v.row, v.col}, v.v) {
				return
			}
		}
	}
}

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i, av := range a.Data {
		bv := b.Data[i]
		if av != bv {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether a and b have the same shape and all elements within tol.
func (a *COO) ApproxEqual(b *COO, tol float64) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	diff := a.Copy()
	diff.Add(-1, b)
	for _, v := range diff.Data {
		if cmplx.Abs(v.v) > tol {
			return false
		}
	}
	return true
}

// Hermitian reports whether m equals its conjugate transpose within tol.
func (m *COO) Hermitian(tol float64) bool {
	if m.rows != m.cols {
		return false
	}
	return m.H().ApproxEqual(m, tol)
}

// H returns the conjugate transpose of m.
func (m *COO) H() *COO {
	h := &COO{rows: m.cols, cols: m.rows, Data: make([]vRowCol, 0, len(m.Data)), m: make(map[[2]int]complex128)}
	for _, v := range m.Data {
		h.Data = append(h.Data, vRowCol{v: cmplx.Conj(v.v), row: v.col, col: v.row})
	}
	slices.SortFunc(h.Data, rowMajor)
	return h
}

func (m *COO) Slice(yBoundN, xBoundN [2]int) *COO {
	yBound, xBound := yBoundN, xBoundN
	for i := 0; i < 2; i++ {
		if yBound[i] < 0 {
			yBound[i] += m.rows
		}
		if xBound[i] < 0 {
			xBound[i] += m.cols
		}
	}

	s := &COO{rows: yBound[1] - yBound[0], cols: xBound[1] - xBound[0], Data: make([]vRowCol, 0), m: make(map[[2]int]complex128)}
	for _, v := range m.Data {
		if v.row < yBound[0] {
			continue
		}
		if v.row >= yBound[1] {
			break
		}
		if v.col < xBound[0] || v.col >= xBound[1] {
			continue
		}
		s.Data = append(s.Data, vRowCol{v: v.v, row: v.row - yBound[0], col: v.col - xBound[0]})
	}
	return s
}

// Add performs a += c*b.
// b may also be a scalar or a column vector, in which case it is broadcasted.
func (a *COO) Add(c complex128, bMatrix Matrix) {
	b := bMatrix.COO()
	if b.m == nil {
		b.m = make(map[[2]int]complex128)
	}
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		var byx [2]int
		switch {
		case b.rows == 1 && b.cols == 1:
		case b.rows == a.rows && b.cols == 1:
			byx[0] = av.row
		case b.rows == a.rows && b.cols == a.cols:
			byx[0], byx[1] = av.row, av.col
		default:
			panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
		}
		bv := b.m[byx]
		if b.rows == a.rows && b.cols == a.cols {
			delete(b.m, byx)
		}

		a.Data[i].v = av.v + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	if a.rows == b.rows && a.cols == b.cols {
		for yx, bv := range b.m {
			a.Data = append(a.Data, vRowCol{v: c * bv, row: yx[0], col: yx[1]})
		}
	}
	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
	clear(b.m)
}

// Mul performs the elementwise product a *= b, with the same broadcasting rules as Add.
func (a *COO) Mul(b *COO) {
	if b.m == nil {
		b.m = make(map[[2]int]complex128)
	}
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		var byx [2]int
		switch {
		case b.rows == 1 && b.cols == 1:
		case b.rows == a.rows && b.cols == 1:
			byx[0] = av.row
		case b.rows == a.rows && b.cols == a.cols:
			byx[0], byx[1] = av.row, av.col
		default:
			panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
		}
		bv := b.m[byx]

		a.Data[i].v = av.v * bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	clear(b.m)
}

// MatMul returns the matrix product a @ b.
func (a *COO) MatMul(b *COO) *COO {
	if a.cols != b.rows {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
	}
	bRows := b.byRow()

	p := &COO{rows: a.rows, cols: b.cols, Data: make([]vRowCol, 0), m: make(map[[2]int]complex128)}
	acc := make(map[int]complex128)
	cols := make([]int, 0)
	flush := func(row int) {
		cols = cols[:0]
		for col := range acc {
			cols = append(cols, col)
		}
		slices.Sort(cols)
		for _, col := range cols {
			if v := acc[col]; v != 0 {
				p.Data = append(p.Data, vRowCol{v: v, row: row, col: col})
			}
		}
		clear(acc)
	}

	curRow := -1
	for _, av := range a.Data {
		if av.row != curRow {
			if curRow >= 0 {
				flush(curRow)
			}
			curRow = av.row
		}
		for _, bv := range bRows[av.col] {
			acc[bv.col] += av.v * bv.v
		}
	}
	if curRow >= 0 {
		flush(curRow)
	}
	return p
}

// MulVec computes dst = m @ x.
func (m *COO) MulVec(dst, x []complex128) []complex128 {
	if len(x) != m.cols {
		panic(fmt.Sprintf("%d %d", len(x), m.cols))
	}
	dst = slices.Grow(dst[:0], m.rows)[:m.rows]
	clear(dst)
	for _, v := range m.Data {
		dst[v.row] += v.v * x[v.col]
	}
	return dst
}

func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

func (m *COO) COO() *COO {
	return m
}

func (m *COO) Dense() [][]complex128 {
	dense := make([][]complex128, m.rows)
	for i := range dense {
		dense[i] = make([]complex128, m.cols)
	}

	for _, v := range m.Data {
		dense[v.row][v.col] = v.v
	}

	return dense
}

func (m *COO) byRow() [][]vRowCol {
	rows := make([][]vRowCol, m.rows)
	start := 0
	for start < len(m.Data) {
		end := start
		for end < len(m.Data) && m.Data[end].row == m.Data[start].row {
			end++
		}
		rows[m.Data[start].row] = m.Data[start:end]
		start = end
	}
	return rows
}

func (m *COO) String() string {
	if m.m == nil {
		m.m = make(map[[2]int]complex128)
	}
	clear(m.m)
	for _, v := range m.Data {
		m.m[[2]int{v.row, v.col}] = v.v
	}

	lines := []string{}
	for i := 0; i < m.rows; i++ {
		cs := []string{}
		for j := 0; j < m.cols; j++ {
			v := m.m[[2]int{i, j}]
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		l := strings.Join(cs, "\t")
		lines = append(lines, l)
	}

	clear(m.m)
	return strings.Join(lines, "\n")
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

func format(v float64) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := strconv.FormatFloat(v, 'g', -1, 64)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}

// FormatNumpy formats v the way numpy prints complex numbers.
func FormatNumpy(v complex128) string {
	switch {
	case imag(v) == 0:
		return strconv.FormatFloat(real(v), 'g', -1, 64)
	default:
		s := strconv.FormatComplex(v, 'g', -1, 128)
		s = strings.TrimPrefix(s, "(")
		s = strings.TrimSuffix(s, ")")
		s = strings.ReplaceAll(s, "i", "j")
		return s
	}
}
