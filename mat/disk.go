package mat

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableMatrix = "m"

	// shortTimeout bounds single element queries.
	shortTimeout = 3 * time.Second
	// longTimeout bounds queries that scan the whole matrix.
	longTimeout = 48 * time.Hour
)

// DiskMatrix is a sparse matrix stored in a sqlite database.
// It allows building operators of large lattices whose number of nonzeros do not fit in memory.
type DiskMatrix struct {
	Path string
	rows int
	cols int

	db *sql.DB
}

func DiskM(dbPath string, dense [][]complex128) *DiskMatrix {
	m, err := NewDiskMatrix(dbPath, dense)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return m
}

// NewDiskMatrix creates a matrix with the elements of dense at dbPath.
// Any existing matrix at dbPath is overwritten.
func NewDiskMatrix(dbPath string, dense [][]complex128) (*DiskMatrix, error) {
	m := &DiskMatrix{Path: dbPath, rows: len(dense), cols: len(dense[0])}
	var err error
	m.db, err = newDB(m.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shortTimeout)
	defer cancel()
	for i, row := range dense {
		for j, v := range row {
			if err := setItem(ctx, m.db, i, j, v); err != nil {
				m.db.Close()
				return nil, errors.Wrap(err, "")
			}
		}
	}

	return m, nil
}

// Close closes the database and removes its file.
func (m *DiskMatrix) Close() error {
	var err error
	if err1 := m.db.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := os.Remove(m.Path); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

func (m *DiskMatrix) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	defer cancel()
	if err := deleteAll(ctx, m.db); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (m *DiskMatrix) Scalar(v complex128) {
	m.rows, m.cols = 1, 1
	if err := m.scalar(v); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (m *DiskMatrix) scalar(v complex128) error {
	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	defer cancel()
	if err := deleteAll(ctx, m.db); err != nil {
		return errors.Wrap(err, "")
	}
	if err := setItem(ctx, m.db, 0, 0, v); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (m *DiskMatrix) Rows() int { return m.rows }
func (m *DiskMatrix) Cols() int { return m.cols }

func (m *DiskMatrix) At(i, j int) complex128 {
	v, err := m.at(i, j)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return v
}

func (m *DiskMatrix) at(i, j int) (complex128, error) {
	ctx, cancel := context.WithTimeout(context.Background(), shortTimeout)
	defer cancel()
	return getItem(ctx, m.db, i, j)
}

// COO loads the whole matrix into memory.
func (a *DiskMatrix) COO() *COO {
	b, err := a.coo()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return b
}

func (a *DiskMatrix) coo() (*COO, error) {
	b := COOZeros(a.rows, a.cols)
	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	defer cancel()
	err := a.scan(ctx, func(v vRowCol) error {
		b.Data = append(b.Data, v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return b, nil
}

// scan calls fn on every element in row major order.
func (m *DiskMatrix) scan(ctx context.Context, fn func(vRowCol) error) error {
	sqlStr := fmt.Sprintf(`SELECT i, j, re, im FROM %s ORDER BY i, j`, tableMatrix)
	rows, err := m.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer rows.Close()

	for rows.Next() {
		var i, j int
		var re, im float64
		if err := rows.Scan(&i, &j, &re, &im); err != nil {
			return errors.Wrap(err, "")
		}
		if err := fn(vRowCol{v: complex(re, im), row: i, col: j}); err != nil {
			return errors.Wrap(err, "")
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (a *DiskMatrix) Add(c complex128, b Matrix) {
	if err := a.add(c, b); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (a *DiskMatrix) add(c complex128, bMatrix Matrix) error {
	if a.rows != bMatrix.Rows() || a.cols != bMatrix.Cols() {
		return errors.Errorf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, bMatrix.Rows(), bMatrix.Cols())
	}
	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	defer cancel()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	addItem := func(v vRowCol) error {
		av, err := getItem(ctx, tx, v.row, v.col)
		if err != nil {
			return errors.Wrap(err, "")
		}
		if err := setItem(ctx, tx, v.row, v.col, av+c*v.v); err != nil {
			return errors.Wrap(err, "")
		}
		return nil
	}

	switch b := bMatrix.(type) {
	case *DiskMatrix:
		// Adding a matrix to itself is a scaling, and scanning a while writing it within the same transaction is not allowed.
		if b == a {
			return errors.Wrap(a.scaleAll(ctx, tx, 1+c), "")
		}
		err = b.scan(ctx, addItem)
	default:
		for _, v := range bMatrix.COO().Data {
			if err = addItem(v); err != nil {
				break
			}
		}
	}
	if err != nil {
		return errors.Wrap(err, "")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (a *DiskMatrix) scaleAll(ctx context.Context, tx *sql.Tx, c complex128) error {
	sqlStr := fmt.Sprintf(`UPDATE %s SET re = re*? - im*?, im = re*? + im*?`, tableMatrix)
	args := []any{real(c), imag(c), imag(c), real(c)}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`DELETE FROM %s WHERE re = 0 AND im = 0`, tableMatrix)
	if _, err := tx.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return tx.Commit()
}

func (a *DiskMatrix) Kron(b *COO) {
	if err := a.kron(b); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (a *DiskMatrix) kron(b *COO) error {
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer os.RemoveAll(dir)

	// Stream the current elements out to a file, since a is rewritten in place.
	if err := a.WriteCOO(dir); err != nil {
		return errors.Wrap(err, "")
	}
	cooReader, err := NewCOOReader(dir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer cooReader.Close()

	a.rows, a.cols = a.rows*b.rows, a.cols*b.cols

	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	defer cancel()
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()
	if err := deleteAll(ctx, tx); err != nil {
		return errors.Wrap(err, fmt.Sprintf("db %s", a.Path))
	}

	for {
		av, err := cooReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "")
		}

		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			if err := setItem(ctx, tx, ky, kx, av.v*bv.v); err != nil {
				return errors.Wrap(err, "")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (m *DiskMatrix) NumNonZero() int {
	n, err := m.numNonZero()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return n
}

func (m *DiskMatrix) numNonZero() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), shortTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf("SELECT count(1) FROM %s", tableMatrix)
	var n int
	if err := m.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

func (m *DiskMatrix) WriteCOO(dir string) error {
	if err := WriteShape(dir, m.rows, m.cols); err != nil {
		return errors.Wrap(err, "")
	}

	cooPath := filepath.Join(dir, FnameCOO)
	cooF, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := NewCOOWriter(cooF)

	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	defer cancel()
	err = m.scan(ctx, func(v vRowCol) error {
		return w.Write(v.v, v.row, v.col)
	})
	if err != nil {
		err = errors.Wrap(err, "")
	}

	if err1 := w.Flush(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := cooF.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getItem(ctx context.Context, db execQueryer, i, j int) (complex128, error) {
	sqlStr := fmt.Sprintf(`SELECT re, im FROM %s WHERE i=? AND j=?`, tableMatrix)
	var re, im float64
	err := db.QueryRowContext(ctx, sqlStr, i, j).Scan(&re, &im)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, errors.Wrap(err, "")
	default:
		return complex(re, im), nil
	}
}

func setItem(ctx context.Context, db execQueryer, i, j int, v complex128) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (i, j, re, im) VALUES (?, ?, ?, ?)`, tableMatrix)
	args := []any{i, j, real(v), imag(v)}
	if v == 0 {
		sqlStr = fmt.Sprintf(`DELETE FROM %s WHERE i=? AND j=?`, tableMatrix)
		args = []any{i, j}
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// A single connection keeps transactions and plain queries from locking each other out.
	db.SetMaxOpenConns(1)

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), shortTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableMatrix)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`CREATE TABLE %s (i INTEGER, j INTEGER, re REAL, im REAL, PRIMARY KEY (i, j)) STRICT`, tableMatrix)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func deleteAll(ctx context.Context, db execQueryer) error {
	sqlStr := fmt.Sprintf(`DELETE FROM %s`, tableMatrix)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
