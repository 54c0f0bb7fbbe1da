package table

import (
	"fmt"
	"sort"
)

// column is a dense, typed, null-aware column.
type column struct {
	typ  ColType
	n    int
	ints []int64
	fls  []float64
	strs []string
	bls  []bool
	null []bool
}

func newColumn(typ ColType, n int) *column {
	c := &column{typ: typ, n: n, null: make([]bool, n)}
	switch typ {
	case Int64:
		c.ints = make([]int64, n)
	case Float64Type:
		c.fls = make([]float64, n)
	case StringType:
		c.strs = make([]string, n)
	case BoolType:
		c.bls = make([]bool, n)
	}
	return c
}

func (c *column) Length() int { return c.n }
func (c *column) Type() ColType { return c.typ }

func (c *column) GetValueAt(i int) Cell {
	if c.null[i] {
		return Cell{Null: true, Type: c.typ}
	}
	switch c.typ {
	case Int64:
		return Cell{Type: Int64, I: c.ints[i]}
	case Float64Type:
		return Cell{Type: Float64Type, F: c.fls[i]}
	case StringType:
		return Cell{Type: StringType, S: c.strs[i]}
	case BoolType:
		return Cell{Type: BoolType, B: c.bls[i]}
	default:
		return Cell{Null: true, Type: NullType}
	}
}

func (c *column) GetSlice(start, length int) ColumnView {
	out := newColumn(c.typ, length)
	for i := 0; i < length; i++ {
		out.setFrom(i, c, start+i)
	}
	return out
}

func (c *column) setFrom(dst int, src *column, srcIdx int) {
	c.null[dst] = src.null[srcIdx]
	switch c.typ {
	case Int64:
		c.ints[dst] = src.ints[srcIdx]
	case Float64Type:
		c.fls[dst] = src.fls[srcIdx]
	case StringType:
		c.strs[dst] = src.strs[srcIdx]
	case BoolType:
		c.bls[dst] = src.bls[srcIdx]
	}
}

func (c *column) Int64Buffer() ([]int64, bool) {
	if c.typ != Int64 {
		return nil, false
	}
	for _, isNull := range c.null {
		if isNull {
			return nil, false
		}
	}
	return c.ints, true
}

func (c *column) Float64Buffer() ([]float64, bool) {
	if c.typ != Float64Type {
		return nil, false
	}
	for _, isNull := range c.null {
		if isNull {
			return nil, false
		}
	}
	return c.fls, true
}

func (c *column) setCell(i int, cell Cell) {
	if cell.Null {
		c.null[i] = true
		return
	}
	switch c.typ {
	case Int64:
		c.ints[i] = cell.I
	case Float64Type:
		c.fls[i] = cell.F
	case StringType:
		c.strs[i] = cell.S
	case BoolType:
		c.bls[i] = cell.B
	}
}

// memTable is the reference Table implementation: a sealed, immutable set of
// named columns sharing a row count.
type memTable struct {
	names []string
	cols  map[string]*column
	rows  int
}

// New builds a Table from column specs. names and cols must have the same
// length; all columns must share the same row count.
func New(names []string, cols []ColumnView) (Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("table: %d names but %d columns", len(names), len(cols))
	}
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Length()
	}
	m := &memTable{names: append([]string{}, names...), cols: make(map[string]*column, len(cols)), rows: rows}
	for i, name := range names {
		if cols[i].Length() != rows {
			return nil, fmt.Errorf("table: column %q has %d rows, expected %d", name, cols[i].Length(), rows)
		}
		c, ok := cols[i].(*column)
		if !ok {
			// Materialize a foreign ColumnView implementation into our own
			// dense storage so downstream operations can assume *column.
			c = newColumn(cols[i].Type(), rows)
			for r := 0; r < rows; r++ {
				c.setCell(r, cols[i].GetValueAt(r))
			}
		}
		m.cols[name] = c
	}
	return m, nil
}

// NewColumn constructs a ColumnView from cells of a uniform type.
func NewColumn(typ ColType, cells []Cell) ColumnView {
	c := newColumn(typ, len(cells))
	for i, cell := range cells {
		c.setCell(i, cell)
	}
	return c
}

func (t *memTable) NumRows() int    { return t.rows }
func (t *memTable) NumColumns() int { return len(t.names) }
func (t *memTable) ColumnNames() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}
func (t *memTable) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}
func (t *memTable) Schema() []ColumnSchema {
	out := make([]ColumnSchema, len(t.names))
	for i, n := range t.names {
		out[i] = ColumnSchema{Name: n, Type: t.cols[n].typ}
	}
	return out
}
func (t *memTable) Column(name string) (ColumnView, bool) {
	c, ok := t.cols[name]
	return c, ok
}

func (t *memTable) Project(names []string) (Table, error) {
	cols := make([]ColumnView, len(names))
	for i, n := range names {
		c, ok := t.cols[n]
		if !ok {
			return nil, fmt.Errorf("table: no such column %q", n)
		}
		cols[i] = c
	}
	return New(names, cols)
}

func (t *memTable) Filter(mask []bool) (Table, error) {
	if len(mask) != t.rows {
		return nil, fmt.Errorf("table: mask length %d does not match %d rows", len(mask), t.rows)
	}
	indices := make([]int, 0, t.rows)
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return t.TakeRows(indices)
}

func (t *memTable) AddColumn(name string, colv ColumnView) (Table, error) {
	if colv.Length() != t.rows {
		return nil, fmt.Errorf("table: new column %q has %d rows, expected %d", name, colv.Length(), t.rows)
	}
	names := t.names
	replacing := t.HasColumn(name)
	if !replacing {
		names = append(append([]string{}, t.names...), name)
	}
	cols := make([]ColumnView, len(names))
	for i, n := range names {
		if n == name {
			cols[i] = colv
		} else {
			cols[i] = t.cols[n]
		}
	}
	return New(names, cols)
}

func (t *memTable) TakeRows(indices []int) (Table, error) {
	cols := make([]ColumnView, len(t.names))
	for i, n := range t.names {
		src := t.cols[n]
		out := newColumn(src.typ, len(indices))
		for r, idx := range indices {
			if idx < 0 || idx >= t.rows {
				return nil, fmt.Errorf("table: row index %d out of range [0,%d)", idx, t.rows)
			}
			out.setFrom(r, src, idx)
		}
		cols[i] = out
	}
	return New(t.names, cols)
}

func (t *memTable) SortByIndices(indices []int) (Table, error) {
	return t.TakeRows(indices)
}

func (t *memTable) SortByColumn(name string, ascending bool) (Table, bool) {
	c, ok := t.cols[name]
	if !ok {
		return nil, false
	}
	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = i
	}
	less := func(a, b int) bool {
		cmp := compareCells(c.GetValueAt(a), c.GetValueAt(b))
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	out, err := t.TakeRows(idx)
	if err != nil {
		return nil, false
	}
	return out, true
}

func compareCells(a, b Cell) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return 1
	}
	if b.Null {
		return -1
	}
	switch a.Type {
	case Int64:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		}
		return 0
	case Float64Type:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		}
		return 0
	case StringType:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		}
		return 0
	case BoolType:
		if a.B == b.B {
			return 0
		}
		if !a.B {
			return -1
		}
		return 1
	}
	return 0
}

type grouping struct {
	t       *memTable
	keys    []string
	groups  []int        // group index per row
	order   [][]string   // key values per group, in first-seen order
	members [][]int      // row indices per group
}

func (t *memTable) GroupBy(names []string) (Grouping, error) {
	for _, n := range names {
		if !t.HasColumn(n) {
			return nil, fmt.Errorf("table: no such column %q", n)
		}
	}
	groupIndex := map[string]int{}
	g := &grouping{t: t, keys: names}
	for r := 0; r < t.rows; r++ {
		keyParts := make([]string, len(names))
		for i, n := range names {
			keyParts[i] = cellKey(t.cols[n].GetValueAt(r))
		}
		key := fmt.Sprint(keyParts)
		idx, ok := groupIndex[key]
		if !ok {
			idx = len(g.order)
			groupIndex[key] = idx
			g.order = append(g.order, keyParts)
			g.members = append(g.members, nil)
		}
		g.members[idx] = append(g.members[idx], r)
	}
	return g, nil
}

func cellKey(c Cell) string {
	if c.Null {
		return "\x00NA"
	}
	switch c.Type {
	case Int64:
		return fmt.Sprintf("i:%d", c.I)
	case Float64Type:
		return fmt.Sprintf("f:%v", c.F)
	case StringType:
		return "s:" + c.S
	case BoolType:
		return fmt.Sprintf("b:%v", c.B)
	}
	return ""
}

func (g *grouping) Keys() []string { return g.keys }

// Aggregate computes a group aggregate. Group-key columns come first, then
// the aggregate column, named "n" for Count (spec.md §6.1).
func (g *grouping) Aggregate(op AggOp, colName string) (Table, error) {
	nGroups := len(g.order)
	keyCols := make([]*column, len(g.keys))
	for i, kname := range g.keys {
		keyCols[i] = newColumn(g.t.cols[kname].typ, nGroups)
	}

	var aggType ColType = Float64Type
	var srcCol *column
	if op != Count {
		var ok bool
		srcCol, ok = g.t.cols[colName]
		if !ok {
			return nil, fmt.Errorf("table: no such column %q", colName)
		}
		if (op == Sum || op == Min || op == Max) && srcCol.typ == Int64 {
			aggType = Int64
		}
	} else {
		aggType = Int64
	}
	aggCol := newColumn(aggType, nGroups)

	for gi, members := range g.members {
		for ki, kname := range g.keys {
			keyCols[ki].setFrom(gi, g.t.cols[kname], members[0])
		}
		switch op {
		case Count:
			aggCol.ints[gi] = int64(len(members))
		case Sum, Mean:
			var sum float64
			var sumI int64
			nonNull := 0
			for _, r := range members {
				cell := srcCol.GetValueAt(r)
				if cell.Null {
					continue
				}
				nonNull++
				if srcCol.typ == Int64 {
					sumI += cell.I
					sum += float64(cell.I)
				} else {
					sum += cell.F
				}
			}
			if op == Sum {
				if aggType == Int64 {
					aggCol.ints[gi] = sumI
				} else {
					aggCol.fls[gi] = sum
				}
			} else {
				if nonNull == 0 {
					aggCol.null[gi] = true
				} else {
					aggCol.fls[gi] = sum / float64(nonNull)
				}
			}
		case Min, Max:
			var best *Cell
			for _, r := range members {
				cell := srcCol.GetValueAt(r)
				if cell.Null {
					continue
				}
				if best == nil {
					c := cell
					best = &c
					continue
				}
				cmp := compareCells(cell, *best)
				if (op == Min && cmp < 0) || (op == Max && cmp > 0) {
					c := cell
					best = &c
				}
			}
			if best == nil {
				aggCol.null[gi] = true
			} else if aggType == Int64 {
				aggCol.ints[gi] = best.I
			} else {
				aggCol.fls[gi] = best.F
			}
		}
	}

	aggName := "n"
	if op != Count {
		aggName = colName
	}
	names := append(append([]string{}, g.keys...), aggName)
	cols := make([]ColumnView, len(names))
	for i, kc := range keyCols {
		cols[i] = kc
	}
	cols[len(cols)-1] = aggCol
	return New(names, cols)
}
