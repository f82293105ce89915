package mat

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	FnameShape = "shape.csv"
	FnameCOO   = "coo.csv"
)

// WriteShape writes the shape file of a COO directory.
func WriteShape(dir string, rows, cols int) error {
	shapePath := filepath.Join(dir, FnameShape)
	if err := os.WriteFile(shapePath, []byte(fmt.Sprintf("%d,%d", rows, cols)), 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (m *COO) WriteCOO(dir string) error {
	if err := WriteShape(dir, m.rows, m.cols); err != nil {
		return errors.Wrap(err, "")
	}

	cooPath := filepath.Join(dir, FnameCOO)
	cooF, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}

	w := NewCOOWriter(cooF)
	for _, v := range m.Data {
		if err1 := w.Write(v.v, v.row, v.col); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}
	if err1 := w.Flush(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}

	if err1 := cooF.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

// COOWriter writes matrix elements in the coo.csv format.
// Values and rows equal to those of the previous record are left empty.
type COOWriter struct {
	w    *csv.Writer
	prev vRowCol
	n    int
}

func NewCOOWriter(w io.Writer) *COOWriter {
	return &COOWriter{w: csv.NewWriter(w), prev: vRowCol{row: -1, col: -1}}
}

func (w *COOWriter) Write(v complex128, row, col int) error {
	var vStr string
	if w.n == 0 || v != w.prev.v {
		vStr = FormatNumpy(v)
	}
	var rowStr string
	if row != w.prev.row {
		rowStr = strconv.Itoa(row)
	}
	colStr := strconv.Itoa(col)

	if err := w.w.Write([]string{vStr, rowStr, colStr}); err != nil {
		return errors.Wrap(err, "")
	}
	w.prev = vRowCol{v: v, row: row, col: col}
	w.n++
	return nil
}

func (w *COOWriter) Flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

type COOReader struct {
	f *os.File
	r *csv.Reader
	i int

	prev vRowCol
}

func NewCOOReader(dir string) (*COOReader, error) {
	r := &COOReader{i: -1}

	cooPath := filepath.Join(dir, FnameCOO)
	var err error
	r.f, err = os.Open(cooPath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r.r = csv.NewReader(r.f)
	return r, nil
}

func (r *COOReader) Close() error {
	return r.f.Close()
}

func (r *COOReader) Read() (vRowCol, error) {
	r.i++
	record, err := r.r.Read()
	if err == io.EOF {
		return vRowCol{}, io.EOF
	}
	if err != nil {
		return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d", r.i))
	}
	if len(record) != 3 {
		return vRowCol{}, errors.Errorf("%d %#v", r.i, record)
	}

	var vrc vRowCol
	switch {
	case record[0] == "":
		vrc.v = r.prev.v
	default:
		vrc.v, err = ParseNumpy(record[0])
		if err != nil {
			return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	switch {
	case record[1] == "":
		vrc.row = r.prev.row
	default:
		vrc.row, err = strconv.Atoi(record[1])
		if err != nil {
			return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	vrc.col, err = strconv.Atoi(record[2])
	if err != nil {
		return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
	}

	r.prev = vrc
	return vrc, nil
}

func ReadCOO(dir string) (*COO, error) {
	m := COOZeros(1, 1)
	var err error
	m.rows, m.cols, err = readShape(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r, err := NewCOOReader(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer r.Close()
	for {
		v, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if v.row < 0 || v.row >= m.rows || v.col < 0 || v.col >= m.cols {
			return nil, errors.Errorf("%#v out of shape %d %d", v, m.rows, m.cols)
		}

		m.Data = append(m.Data, v)
	}

	return m, nil
}

// ParseNumpy parses a complex number in numpy notation, such as 1+2j.
func ParseNumpy(s string) (complex128, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "j", "i")
	v, err := strconv.ParseComplex(s, 128)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return v, nil
}

func readShape(dir string) (int, int, error) {
	f, err := os.Open(filepath.Join(dir, FnameShape))
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	if len(records) == 0 {
		return -1, -1, errors.Errorf("empty")
	}
	row := records[0]

	if len(row) != 2 {
		return -1, -1, errors.Errorf("%#v", row)
	}
	i, err := strconv.Atoi(row[0])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}
	j, err := strconv.Atoi(row[1])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}

	return i, j, nil
}
