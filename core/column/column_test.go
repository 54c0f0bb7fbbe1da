package column

import (
	"testing"

	"tlang/core/table"
	"tlang/core/value"
)

func TestToCtyFromCtyRoundTripsScalars(t *testing.T) {
	cases := []value.Value{
		value.Int(7),
		value.Float(1.5),
		value.Bool(true),
		value.Str("x"),
	}
	for _, v := range cases {
		cv, err := ToCty(v)
		if err != nil {
			t.Fatalf("ToCty(%#v): %v", v, err)
		}
		got := FromCty(cv)
		if got.Kind == value.KindFloat && v.Kind == value.KindInt {
			if got.F != float64(v.I) {
				t.Errorf("got %#v, want %#v widened to float", got, v)
			}
			continue
		}
		if got.Kind != v.Kind {
			t.Errorf("Kind: got %v, want %v", got.Kind, v.Kind)
		}
	}
}

func TestToCtyNAProducesNullOfMatchingType(t *testing.T) {
	cv, err := ToCty(value.NA(value.NABool))
	if err != nil {
		t.Fatalf("ToCty: %v", err)
	}
	if !cv.IsNull() {
		t.Fatalf("got a non-null cty.Value for an NA Value")
	}
	got := FromCty(cv)
	if got.Kind != value.KindNA || got.NAKind != value.NABool {
		t.Fatalf("got %#v, want NA(NABool) round-tripped through cty", got)
	}
}

func TestInferColumnTypeSkipsLeadingNA(t *testing.T) {
	vals := []value.Value{value.NA(value.NAGeneric), value.Int(1), value.Int(2)}
	if got := InferColumnType(vals); got != table.Int64 {
		t.Fatalf("got %v, want Int64 (first non-NA element wins)", got)
	}
}

func TestInferColumnTypeAllNADefaultsToNull(t *testing.T) {
	vals := []value.Value{value.NA(value.NAGeneric), value.NA(value.NAGeneric)}
	if got := InferColumnType(vals); got != table.NullType {
		t.Fatalf("got %v, want NullType for an all-NA column", got)
	}
}

func TestBuildColumnWidensIntToFloat(t *testing.T) {
	vals := []value.Value{value.Int(1), value.Float(2.5)}
	col, err := BuildColumn(table.Float64Type, vals)
	if err != nil {
		t.Fatalf("BuildColumn: %v", err)
	}
	if col.GetValueAt(0).F != 1.0 {
		t.Errorf("got %#v, want the Int cell widened to Float(1.0)", col.GetValueAt(0))
	}
}

func TestBuildColumnRejectsIncompatibleType(t *testing.T) {
	vals := []value.Value{value.Str("x")}
	if _, err := BuildColumn(table.Int64, vals); err == nil {
		t.Fatalf("expected BuildColumn to reject a String value in an Int64 column")
	}
}

func TestCellToValueNullCellBecomesTypedNA(t *testing.T) {
	cell := table.Cell{Null: true, Type: table.Int64}
	v := CellToValue(cell)
	if !v.IsNA() {
		t.Fatalf("got %#v, want a typed NA", v)
	}
}
