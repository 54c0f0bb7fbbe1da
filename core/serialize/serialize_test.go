package serialize

import (
	"bytes"
	"testing"

	"tlang/core/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		t.Fatalf("Encode(%#v): %v", v, err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Int(42),
		value.Float(3.25),
		value.Bool(true),
		value.Str("hello"),
		value.Null(),
		value.NA(value.NAFloat),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		if got.Kind != v.Kind {
			t.Errorf("Kind: got %v, want %v", got.Kind, v.Kind)
			continue
		}
		switch v.Kind {
		case value.KindInt:
			if got.I != v.I {
				t.Errorf("Int: got %d, want %d", got.I, v.I)
			}
		case value.KindFloat:
			if got.F != v.F {
				t.Errorf("Float: got %v, want %v", got.F, v.F)
			}
		case value.KindBool:
			if got.B != v.B {
				t.Errorf("Bool: got %v, want %v", got.B, v.B)
			}
		case value.KindString:
			if got.S != v.S {
				t.Errorf("String: got %q, want %q", got.S, v.S)
			}
		case value.KindNA:
			if got.NAKind != v.NAKind {
				t.Errorf("NAKind: got %v, want %v", got.NAKind, v.NAKind)
			}
		}
	}
}

func TestRoundTripVector(t *testing.T) {
	v := value.Vector([]value.Value{value.Int(1), value.NA(value.NAInt), value.Int(3)})
	got := roundTrip(t, v)
	if got.Kind != value.KindVector || len(got.Vector) != 3 {
		t.Fatalf("got %#v, want a 3-element Vector", got)
	}
	if got.Vector[1].Kind != value.KindNA {
		t.Errorf("element 1: got %#v, want NA", got.Vector[1])
	}
	if got.Vector[0].I != 1 || got.Vector[2].I != 3 {
		t.Errorf("got %#v, want [1 NA 3]", got.Vector)
	}
}

func TestRoundTripList(t *testing.T) {
	name := "x"
	v := value.List([]*string{&name, nil}, []value.Value{value.Int(1), value.Str("y")})
	got := roundTrip(t, v)
	if got.Kind != value.KindList || len(got.List.Values) != 2 {
		t.Fatalf("got %#v, want a 2-element List", got)
	}
	if got.List.Names[0] == nil || *got.List.Names[0] != "x" {
		t.Errorf("entry 0 name: got %#v, want \"x\"", got.List.Names[0])
	}
	if got.List.Names[1] != nil {
		t.Errorf("entry 1 name: got %#v, want nil (unnamed)", got.List.Names[1])
	}
}

func TestRoundTripDict(t *testing.T) {
	v := value.Dict([]string{"a", "b"}, map[string]value.Value{
		"a": value.Int(1),
		"b": value.Bool(false),
	})
	got := roundTrip(t, v)
	if got.Kind != value.KindDict || len(got.Dict.Keys) != 2 {
		t.Fatalf("got %#v, want a 2-key Dict", got)
	}
	if got.Dict.Values["a"].I != 1 || got.Dict.Values["b"].B != false {
		t.Errorf("got %#v, want {a:1 b:false}", got.Dict.Values)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOPE")
	if _, err := Decode(buf); err == nil {
		t.Fatalf("expected Decode to reject a non-TOBJ header")
	}
}

func TestEncodeRejectsFunctionValues(t *testing.T) {
	fn := value.Func(&value.FunctionValue{})
	var buf bytes.Buffer
	if err := Encode(&buf, fn); err == nil {
		t.Fatalf("expected Encode to reject a Function value as unserializable")
	}
}
