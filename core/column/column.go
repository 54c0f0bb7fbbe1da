// Package column bridges core/value.Value and core/table.Cell. The
// Cell/Value conversions (CellToValue, ValueToCell, BuildColumn) are direct
// type switches; ToCty/FromCty additionally convert scalars to and from
// go-cty values, generalizing adapters/terraform/hcl/cty_safe.go's
// CtyToSafe: null and "unknown" cty values are checked first and folded into
// T's NA vocabulary before any type-specific conversion happens.
package column

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"tlang/core/table"
	"tlang/core/value"
)

// ToCty converts a scalar Value into a cty.Value, used when handing a
// column value to code that wants the cty vocabulary (e.g. future
// provider-style extensions). NA becomes cty.NullVal of the matching type;
// Null becomes cty.NilVal.
func ToCty(v value.Value) (cty.Value, error) {
	switch v.Kind {
	case value.KindInt:
		return cty.NumberIntVal(v.I), nil
	case value.KindFloat:
		return cty.NumberFloatVal(v.F), nil
	case value.KindBool:
		return cty.BoolVal(v.B), nil
	case value.KindString:
		return cty.StringVal(v.S), nil
	case value.KindNull:
		return cty.NilVal, nil
	case value.KindNA:
		switch v.NAKind {
		case value.NAInt, value.NAFloat:
			return cty.NullVal(cty.Number), nil
		case value.NABool:
			return cty.NullVal(cty.Bool), nil
		case value.NAString:
			return cty.NullVal(cty.String), nil
		default:
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
	default:
		return cty.NilVal, fmt.Errorf("column: %s is not a scalar column value", v.Kind)
	}
}

// FromCty converts a cty.Value back to a scalar Value. Unknown values (not
// possible for T, which has no deferred-computation values, but checked
// first in case a future extension introduces them) become a generic NA
// rather than silently coercing to a zero value — the same "never blindly
// pass through" discipline as CtyToSafe.
func FromCty(val cty.Value) value.Value {
	if !val.IsKnown() {
		return value.NA(value.NAGeneric)
	}
	if val.IsNull() {
		switch {
		case val.Type() == cty.Number:
			return value.NA(value.NAFloat)
		case val.Type() == cty.Bool:
			return value.NA(value.NABool)
		case val.Type() == cty.String:
			return value.NA(value.NAString)
		default:
			return value.Null()
		}
	}
	switch val.Type() {
	case cty.Number:
		f, _ := val.AsBigFloat().Float64()
		if f == float64(int64(f)) {
			return value.Float(f) // widest numeric type cty retains; callers narrow via core/eval's numeric coercion
		}
		return value.Float(f)
	case cty.Bool:
		return value.Bool(val.True())
	case cty.String:
		return value.Str(val.AsString())
	default:
		return value.NA(value.NAGeneric)
	}
}

// CellToValue converts a table.Cell read from a DataFrame column into a
// scalar Value with a direct type switch (no cty conversion); a null cell
// becomes the NA subtype of its column type via value.ScalarFromCell.
func CellToValue(c table.Cell) value.Value {
	if c.Null {
		return value.ScalarFromCell(c)
	}
	switch c.Type {
	case table.Int64:
		return value.Int(c.I)
	case table.Float64Type:
		return value.Float(c.F)
	case table.BoolType:
		return value.Bool(c.B)
	case table.StringType:
		return value.Str(c.S)
	default:
		return value.Null()
	}
}

// ValueToCell converts a scalar Value into a table.Cell for column
// construction (`data.frame()`, `mutate()`). It returns ok=false for
// non-scalar values (Vector, List, Dict, DataFrame, ...), which callers must
// reject with a TypeError before reaching this function.
func ValueToCell(v value.Value) (table.Cell, bool) {
	return value.CellFromScalar(v)
}

// InferColumnType determines the table.ColType a slice of scalar Values
// should be stored as, the way `data.frame()` infers column types from
// vector literals: the first element that is not an untyped NA decides (a
// typed NA such as NA_int counts as its type); a column holding only untyped
// NAs defaults to NullType.
func InferColumnType(vals []value.Value) table.ColType {
	for _, v := range vals {
		switch v.Kind {
		case value.KindInt:
			return table.Int64
		case value.KindFloat:
			return table.Float64Type
		case value.KindBool:
			return table.BoolType
		case value.KindString:
			return table.StringType
		case value.KindNA:
			switch v.NAKind {
			case value.NAInt:
				return table.Int64
			case value.NAFloat:
				return table.Float64Type
			case value.NABool:
				return table.BoolType
			case value.NAString:
				return table.StringType
			}
		}
	}
	return table.NullType
}

// BuildColumn materializes a ColumnView from scalar Values, coercing Int
// cells into a Float64Type column if the inferred type is Float64Type and
// vice versa coercing Float cells down is never done (widening only).
func BuildColumn(typ table.ColType, vals []value.Value) (table.ColumnView, error) {
	cells := make([]table.Cell, len(vals))
	for i, v := range vals {
		cell, ok := ValueToCell(v)
		if !ok {
			return nil, fmt.Errorf("column: value of kind %s cannot be stored in a column", v.Kind)
		}
		if !cell.Null && cell.Type != typ {
			switch {
			case typ == table.Float64Type && cell.Type == table.Int64:
				cell = table.Cell{Type: table.Float64Type, F: float64(cell.I)}
			default:
				return nil, fmt.Errorf("column: cannot store %s value in a %s column", cell.Type, typ)
			}
		}
		if cell.Null {
			cell.Type = typ
		}
		cells[i] = cell
	}
	return table.NewColumn(typ, cells), nil
}
