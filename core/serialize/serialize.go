// Package serialize implements the TOBJ binary codec (spec.md §4.6) plus the
// JSON writers for the pipeline's dag.json/build_log_*.json/registry files.
// The binary codec is tagged-length and little-endian; it is grounded on the
// same "serialize once, hash the bytes" discipline as
// core/determinism.ContentHash, generalized from a content-hash input to a
// full round-trippable encoding.
package serialize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"tlang/core/column"
	"tlang/core/table"
	"tlang/core/value"
)

const (
	magic   = "TOBJ"
	version = byte(1)
)

// tag identifies a Value's on-disk shape. Values are assigned in Kind order
// for readability; the numeric tag itself is part of the wire format and
// must never be renumbered once written artifacts exist in the wild.
type tag byte

const (
	tagInt tag = iota
	tagFloat
	tagBool
	tagString
	tagNull
	tagNA
	tagVector
	tagNDArray
	tagList
	tagDict
	tagDataFrame
)

var naTagByKind = map[value.NAKind]byte{
	value.NAGeneric: 0,
	value.NABool:    1,
	value.NAInt:     2,
	value.NAFloat:   3,
	value.NAString:  4,
}

var naKindByTag = map[byte]value.NAKind{
	0: value.NAGeneric,
	1: value.NABool,
	2: value.NAInt,
	3: value.NAFloat,
	4: value.NAString,
}

// Encode writes v to w in TOBJ format, preceded by the magic header and
// version byte. Only scalar/container Values are supported; Function,
// Error, Formula, Pipeline, Intent, ColumnRef, and Grouped values cannot be
// persisted as pipeline artifacts and return an error, per spec.md §4.5's
// artifacts being "each node's value" — pipeline nodes are expected to
// evaluate to data, not to callables or language-internal handles.
func Encode(w io.Writer, v value.Value) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{version}); err != nil {
		return err
	}
	return encodeValue(w, v)
}

func encodeValue(w io.Writer, v value.Value) error {
	switch v.Kind {
	case value.KindInt:
		return writeTagged(w, tagInt, func(buf *bytes.Buffer) { binary.Write(buf, binary.LittleEndian, v.I) })
	case value.KindFloat:
		return writeTagged(w, tagFloat, func(buf *bytes.Buffer) { binary.Write(buf, binary.LittleEndian, v.F) })
	case value.KindBool:
		b := byte(0)
		if v.B {
			b = 1
		}
		return writeTagged(w, tagBool, func(buf *bytes.Buffer) { buf.WriteByte(b) })
	case value.KindString:
		return writeTagged(w, tagString, func(buf *bytes.Buffer) { writeString(buf, v.S) })
	case value.KindNull:
		return writeTagged(w, tagNull, func(buf *bytes.Buffer) {})
	case value.KindNA:
		return writeTagged(w, tagNA, func(buf *bytes.Buffer) { buf.WriteByte(naTagByKind[v.NAKind]) })
	case value.KindVector:
		return writeTaggedErr(w, tagVector, func(buf *bytes.Buffer) error {
			binary.Write(buf, binary.LittleEndian, uint32(len(v.Vector)))
			for _, e := range v.Vector {
				if err := encodeValue(buf, e); err != nil {
					return err
				}
			}
			return nil
		})
	case value.KindNDArray:
		return writeTagged(w, tagNDArray, func(buf *bytes.Buffer) {
			binary.Write(buf, binary.LittleEndian, uint32(len(v.NDArray.Shape)))
			for _, s := range v.NDArray.Shape {
				binary.Write(buf, binary.LittleEndian, uint32(s))
			}
			binary.Write(buf, binary.LittleEndian, uint32(len(v.NDArray.Data)))
			for _, f := range v.NDArray.Data {
				binary.Write(buf, binary.LittleEndian, f)
			}
		})
	case value.KindList:
		return writeTaggedErr(w, tagList, func(buf *bytes.Buffer) error {
			binary.Write(buf, binary.LittleEndian, uint32(len(v.List.Values)))
			for i, e := range v.List.Values {
				named := byte(0)
				if v.List.Names[i] != nil {
					named = 1
				}
				buf.WriteByte(named)
				if named == 1 {
					writeString(buf, *v.List.Names[i])
				}
				if err := encodeValue(buf, e); err != nil {
					return err
				}
			}
			return nil
		})
	case value.KindDict:
		return writeTaggedErr(w, tagDict, func(buf *bytes.Buffer) error {
			binary.Write(buf, binary.LittleEndian, uint32(len(v.Dict.Keys)))
			for _, k := range v.Dict.Keys {
				writeString(buf, k)
				if err := encodeValue(buf, v.Dict.Values[k]); err != nil {
					return err
				}
			}
			return nil
		})
	case value.KindDataFrame:
		return writeTaggedErr(w, tagDataFrame, func(buf *bytes.Buffer) error {
			names := v.DataFrame.ColumnNames()
			binary.Write(buf, binary.LittleEndian, uint32(v.DataFrame.NumRows()))
			binary.Write(buf, binary.LittleEndian, uint32(len(names)))
			for _, name := range names {
				writeString(buf, name)
				col, _ := v.DataFrame.Column(name)
				buf.WriteByte(byte(col.Type()))
				for r := 0; r < col.Length(); r++ {
					cell := col.GetValueAt(r)
					if cell.Null {
						buf.WriteByte(1)
						continue
					}
					buf.WriteByte(0)
					cv := column.CellToValue(cell)
					if err := encodeValue(buf, cv); err != nil {
						return err
					}
				}
			}
			return nil
		})
	default:
		return fmt.Errorf("serialize: value of kind %s is not serializable", v.Kind)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func writeTagged(w io.Writer, t tag, fn func(*bytes.Buffer)) error {
	var buf bytes.Buffer
	buf.WriteByte(byte(t))
	fn(&buf)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeTaggedErr(w io.Writer, t tag, fn func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	buf.WriteByte(byte(t))
	if err := fn(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads a TOBJ value from r, validating the magic header and version.
func Decode(r io.Reader) (value.Value, error) {
	hdr := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return value.Value{}, fmt.Errorf("serialize: %w", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return value.Value{}, fmt.Errorf("serialize: bad magic header")
	}
	if hdr[len(magic)] != version {
		return value.Value{}, fmt.Errorf("serialize: unsupported version %d", hdr[len(magic)])
	}
	return decodeValue(r)
}

func decodeValue(r io.Reader) (value.Value, error) {
	var tb [1]byte
	if _, err := io.ReadFull(r, tb[:]); err != nil {
		return value.Value{}, err
	}
	switch tag(tb[0]) {
	case tagInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case tagFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case tagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b[0] != 0), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(s), nil
	case tagNull:
		return value.Null(), nil
	case tagNA:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Value{}, err
		}
		return value.NA(naKindByTag[b[0]]), nil
	case tagVector:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		elems := make([]value.Value, n)
		for i := range elems {
			v, err := decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.Vector(elems), nil
	case tagNDArray:
		rank, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		shape := make([]int, rank)
		for i := range shape {
			s, err := readU32(r)
			if err != nil {
				return value.Value{}, err
			}
			shape[i] = int(s)
		}
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		data := make([]float64, n)
		for i := range data {
			if err := binary.Read(r, binary.LittleEndian, &data[i]); err != nil {
				return value.Value{}, err
			}
		}
		return value.NDArray(shape, data), nil
	case tagList:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		names := make([]*string, n)
		values := make([]value.Value, n)
		for i := 0; i < int(n); i++ {
			var nb [1]byte
			if _, err := io.ReadFull(r, nb[:]); err != nil {
				return value.Value{}, err
			}
			if nb[0] == 1 {
				s, err := readString(r)
				if err != nil {
					return value.Value{}, err
				}
				names[i] = &s
			}
			v, err := decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			values[i] = v
		}
		return value.List(names, values), nil
	case tagDict:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		keys := make([]string, n)
		vals := make(map[string]value.Value, n)
		for i := range keys {
			k, err := readString(r)
			if err != nil {
				return value.Value{}, err
			}
			v, err := decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			keys[i] = k
			vals[k] = v
		}
		return value.Dict(keys, vals), nil
	case tagDataFrame:
		return decodeDataFrame(r)
	default:
		return value.Value{}, fmt.Errorf("serialize: unknown tag %d", tb[0])
	}
}

func decodeDataFrame(r io.Reader) (value.Value, error) {
	nrows, err := readU32(r)
	if err != nil {
		return value.Value{}, err
	}
	ncols, err := readU32(r)
	if err != nil {
		return value.Value{}, err
	}
	names := make([]string, ncols)
	cols := make([]table.ColumnView, ncols)
	for ci := range names {
		name, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		var tb [1]byte
		if _, err := io.ReadFull(r, tb[:]); err != nil {
			return value.Value{}, err
		}
		typ := table.ColType(tb[0])
		vals := make([]value.Value, nrows)
		for ri := range vals {
			var nullb [1]byte
			if _, err := io.ReadFull(r, nullb[:]); err != nil {
				return value.Value{}, err
			}
			if nullb[0] == 1 {
				vals[ri] = value.NA(value.NAGeneric)
				continue
			}
			v, err := decodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			vals[ri] = v
		}
		col, err := column.BuildColumn(typ, vals)
		if err != nil {
			return value.Value{}, err
		}
		names[ci] = name
		cols[ci] = col
	}
	t, err := table.New(names, cols)
	if err != nil {
		return value.Value{}, err
	}
	return value.DataFrame(t), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readU32(r io.Reader) (uint32, error) {
	var n uint32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}
