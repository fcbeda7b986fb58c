package lcreduce

import (
	"fmt"
	"math"
	"sync"
)

// ColumnNotFound is returned by DataSource.ColumnIndex for unknown names.
const ColumnNotFound = -1

// DataSource is the tabular collaborator the pipeline reads from.
type DataSource interface {
	ColumnIndex(name string) int
	RowCount() int
	Value(col, row int) float64
}

// ColumnWriter accepts derived columns. Name collisions are the writer's concern.
type ColumnWriter interface {
	SetColumn(name string, values []float64)
}

// Table is an in-memory DataSource and ColumnWriter. Lock and Unlock reserve
// the whole table for a reduction pass; single reads and writes take their own
// lock and never wait on the reservation.
type Table struct {
	pass  sync.Mutex
	mu    sync.RWMutex
	names []string
	index map[string]int
	cols  [][]float64
	rows  int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Lock reserves the table until Unlock.
func (t *Table) Lock() { t.pass.Lock() }

// Unlock releases a reservation taken by Lock.
func (t *Table) Unlock() { t.pass.Unlock() }

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Table{
		names: append([]string(nil), t.names...),
		index: make(map[string]int, len(t.index)),
		cols:  make([][]float64, len(t.cols)),
		rows:  t.rows,
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	for i, col := range t.cols {
		c.cols[i] = append([]float64(nil), col...)
	}
	return c
}

// AddColumn appends a new column. Shorter columns are padded with NaN.
func (t *Table) AddColumn(name string, values []float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[name]; ok {
		return fmt.Errorf("duplicate column %q", name)
	}
	t.appendLocked(name, values)
	return nil
}

// SetColumn replaces or appends a column.
func (t *Table) SetColumn(name string, values []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[name]; ok {
		t.cols[i] = append([]float64(nil), values...)
		t.resizeLocked(len(values))
		return
	}
	t.appendLocked(name, values)
}

func (t *Table) appendLocked(name string, values []float64) {
	t.index[name] = len(t.names)
	t.names = append(t.names, name)
	t.cols = append(t.cols, append([]float64(nil), values...))
	t.resizeLocked(len(values))
}

func (t *Table) resizeLocked(n int) {
	if n > t.rows {
		t.rows = n
	}
	for i, c := range t.cols {
		for len(c) < t.rows {
			c = append(c, math.NaN())
		}
		t.cols[i] = c
	}
}

// ColumnIndex implements DataSource.
func (t *Table) ColumnIndex(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i, ok := t.index[name]; ok {
		return i
	}
	return ColumnNotFound
}

// RowCount implements DataSource.
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Value implements DataSource. Out-of-range cells are NaN.
func (t *Table) Value(col, row int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if col < 0 || col >= len(t.cols) || row < 0 || row >= t.rows {
		return math.NaN()
	}
	return t.cols[col][row]
}

// ColumnNames returns the column names in insertion order.
func (t *Table) ColumnNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.names...)
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.cols[i]...), true
}

// readColumn copies a column out of any DataSource.
func readColumn(src DataSource, col int) []float64 {
	n := src.RowCount()
	out := make([]float64, n)
	for r := 0; r < n; r++ {
		out[r] = src.Value(col, r)
	}
	return out
}
