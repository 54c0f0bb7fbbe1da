// Package table defines the columnar table collaborator contract
// (spec.md §6.1) and ships a reference in-memory implementation so the
// interpreter runs end-to-end even though the production engine is treated
// as an external black box. It is structured the way
// core/graph/canonical_graph.go structures sealed, indexed data: dense
// storage, built once, read many times.
package table

// ColType identifies a column's element type.
type ColType int

const (
	Int64 ColType = iota
	Float64Type
	BoolType
	StringType
	NullType
)

// String returns the type name used in Schema() results.
func (t ColType) String() string {
	switch t {
	case Int64:
		return "Int64"
	case Float64Type:
		return "Float64"
	case BoolType:
		return "Bool"
	case StringType:
		return "String"
	default:
		return "Null"
	}
}

// Cell is a single column value in the table's own primitive vocabulary.
// The Cell <-> core/value.Value translation lives in core/value
// (CellFromScalar/ScalarFromCell) and core/column; this package does not
// import core/value.
type Cell struct {
	Null bool
	Type ColType
	I    int64
	F    float64
	S    string
	B    bool
}

// ColumnSchema names one column and its type.
type ColumnSchema struct {
	Name string
	Type ColType
}

// ColumnView exposes a single column's data (spec.md §6.1).
type ColumnView interface {
	Length() int
	Type() ColType
	GetValueAt(i int) Cell
	GetSlice(start, length int) ColumnView
	// Int64Buffer/Float64Buffer return a zero-copy view over contiguous
	// numeric storage when the column is homogeneous and null-free; ok is
	// false otherwise and callers must fall back to GetValueAt.
	Int64Buffer() (data []int64, ok bool)
	Float64Buffer() (data []float64, ok bool)
}

// AggOp identifies a group aggregate operation.
type AggOp int

const (
	Sum AggOp = iota
	Mean
	Count
	Min
	Max
)

// Grouping is the result of GroupBy, ready for GroupAggregate.
type Grouping interface {
	Aggregate(op AggOp, column string) (Table, error)
	Keys() []string
}

// Table is the opaque, pure (copy-on-write) table handle the evaluator's
// DataFrame value wraps.
type Table interface {
	NumRows() int
	NumColumns() int
	ColumnNames() []string
	HasColumn(name string) bool
	Schema() []ColumnSchema
	Column(name string) (ColumnView, bool)

	Project(names []string) (Table, error)
	Filter(mask []bool) (Table, error)
	AddColumn(name string, col ColumnView) (Table, error)
	TakeRows(indices []int) (Table, error)
	SortByIndices(indices []int) (Table, error)
	SortByColumn(name string, ascending bool) (Table, bool)

	GroupBy(names []string) (Grouping, error)
}
