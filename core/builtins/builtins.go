// Package builtins populates a core/builtin.Registry with the concrete
// functions spec.md requires: arithmetic/stat helpers, data-frame
// constructors, CSV I/O, assertion/error helpers, and introspection. It is
// grounded on clouds/aws/usage/estimators.go's handler-per-concern catalog
// shape and core/catalog/catalog.go's registration pattern, generalized from
// cost estimators to general-purpose builtins.
package builtins

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"tlang/core/builtin"
	"tlang/core/column"
	"tlang/core/pipeline"
	"tlang/core/table"
	"tlang/core/value"
	"tlang/internal/config"
	"tlang/internal/errors"
)

// Register installs every builtin this package knows about into reg.
func Register(reg *builtin.Registry) {
	registerCore(reg)
	registerMath(reg)
	registerString(reg)
	registerDataFrame(reg)
	registerIO(reg)
	registerErrors(reg)
	registerPipeline(reg)
	registerDoc(reg)
	registerNumeric(reg)
}

func bi(reg *builtin.Registry, name string, params, optional []string, variadic bool, doc string, fn value.BuiltinFunc) {
	reg.Register(&builtin.Spec{Name: name, Params: params, Optional: optional, Variadic: variadic, Doc: doc, Fn: fn})
}

// biAbsorbsError is bi for the spec.md §3 error-absorption exceptions
// (is_error, error_code, error_message, error_context): core/eval dispatches
// these an Error argument rather than short-circuiting on it.
func biAbsorbsError(reg *builtin.Registry, name string, params, optional []string, variadic bool, doc string, fn value.BuiltinFunc) {
	reg.Register(&builtin.Spec{Name: name, Params: params, Optional: optional, Variadic: variadic, Doc: doc, Fn: fn, AbsorbsError: true})
}

// AsFunctionValue wraps a registered spec as a callable Value, used by
// core/registry to populate the initial environment with one binding per
// builtin.
func AsFunctionValue(spec *builtin.Spec) value.Value {
	return value.Func(&value.FunctionValue{Name: spec.Name, Builtin: spec.Fn})
}

func argErr(name, msg string) (value.Value, error) {
	return value.Err(value.ErrType, fmt.Sprintf("%s: %s", name, msg)), nil
}

// ---- core: print, length, class, is_na, identity, c() ----

func registerCore(reg *builtin.Registry) {
	bi(reg, "print", []string{"x"}, nil, false, "Prints a value's string form to stdout.", func(cs *value.CallSite) (value.Value, error) {
		fmt.Println(cs.Args[0].String())
		return cs.Args[0], nil
	})

	bi(reg, "length", []string{"x"}, nil, false, "Returns the number of elements in a vector, list, or DataFrame's row count.", func(cs *value.CallSite) (value.Value, error) {
		x := cs.Args[0]
		switch x.Kind {
		case value.KindVector:
			return value.Int(int64(len(x.Vector))), nil
		case value.KindList:
			return value.Int(int64(len(x.List.Values))), nil
		case value.KindDict:
			return value.Int(int64(len(x.Dict.Keys))), nil
		case value.KindDataFrame:
			return value.Int(int64(x.DataFrame.NumRows())), nil
		case value.KindString:
			return value.Int(int64(len(x.S))), nil
		default:
			return value.Int(1), nil
		}
	})

	bi(reg, "class", []string{"x"}, nil, false, "Returns the type name of a value.", func(cs *value.CallSite) (value.Value, error) {
		return value.Str(cs.Args[0].TypeName()), nil
	})

	bi(reg, "is_na", []string{"x"}, nil, false, "Reports whether a value is NA.", func(cs *value.CallSite) (value.Value, error) {
		return value.Bool(cs.Args[0].IsNA()), nil
	})

	bi(reg, "is_null", []string{"x"}, nil, false, "Reports whether a value is null.", func(cs *value.CallSite) (value.Value, error) {
		return value.Bool(cs.Args[0].IsNull()), nil
	})

	biAbsorbsError(reg, "is_error", []string{"x"}, nil, false, "Reports whether a value is an Error.", func(cs *value.CallSite) (value.Value, error) {
		return value.Bool(cs.Args[0].IsError()), nil
	})

	bi(reg, "c", nil, nil, true, "Concatenates its arguments into a single Vector.", func(cs *value.CallSite) (value.Value, error) {
		var out []value.Value
		for _, a := range cs.Args {
			if a.Kind == value.KindVector {
				out = append(out, a.Vector...)
			} else {
				out = append(out, a)
			}
		}
		return value.Vector(out), nil
	})

	bi(reg, "identity", []string{"x"}, nil, false, "Returns its argument unchanged.", func(cs *value.CallSite) (value.Value, error) {
		return cs.Args[0], nil
	})
}

// ---- math / stats ----

// numericSlice extracts the numeric elements of v (a scalar or Vector).
// naRm=false (spec.md's default) makes an NA element abort the extraction
// with hadNA=true, rather than being silently dropped, per the "no silent
// NA propagation" invariant; naRm=true skips NAs instead.
func numericSlice(v value.Value, naRm bool) (xs []float64, hadNA bool, ok bool) {
	var elems []value.Value
	switch v.Kind {
	case value.KindVector:
		elems = v.Vector
	default:
		elems = []value.Value{v}
	}
	out := make([]float64, 0, len(elems))
	for _, e := range elems {
		if e.IsNA() {
			if naRm {
				continue
			}
			return nil, true, true
		}
		switch e.Kind {
		case value.KindInt:
			out = append(out, float64(e.I))
		case value.KindFloat:
			out = append(out, e.F)
		default:
			return nil, false, false
		}
	}
	return out, false, true
}

// naRmFlag reads the na_rm named argument, defaulting to false.
func naRmFlag(cs *value.CallSite) bool {
	v, ok := cs.Named["na_rm"]
	if !ok {
		return false
	}
	b, _ := v.Truthy()
	return b
}

func registerMath(reg *builtin.Registry) {
	bi(reg, "sum", []string{"x"}, []string{"na_rm"}, false, "Sums a numeric vector; TypeError on an NA element unless na_rm=true.", func(cs *value.CallSite) (value.Value, error) {
		xs, hadNA, ok := numericSlice(cs.Args[0], naRmFlag(cs))
		if !ok {
			return argErr("sum", "expected a numeric vector")
		}
		if hadNA {
			return value.Err(value.ErrType, "sum: encountered NA value; pass na_rm=true to skip"), nil
		}
		total := 0.0
		for _, x := range xs {
			total += x
		}
		return value.Float(total), nil
	})

	bi(reg, "mean", []string{"x"}, []string{"na_rm"}, false, "Computes the arithmetic mean of a numeric vector; TypeError on an NA element unless na_rm=true.", func(cs *value.CallSite) (value.Value, error) {
		xs, hadNA, ok := numericSlice(cs.Args[0], naRmFlag(cs))
		if !ok {
			return argErr("mean", "expected a numeric vector")
		}
		if hadNA {
			return value.Err(value.ErrType, "mean: encountered NA value; pass na_rm=true to skip"), nil
		}
		if len(xs) == 0 {
			return value.NA(value.NAFloat), nil
		}
		total := 0.0
		for _, x := range xs {
			total += x
		}
		return value.Float(total / float64(len(xs))), nil
	})

	bi(reg, "min", []string{"x"}, []string{"na_rm"}, false, "Returns the smallest element of a numeric vector; TypeError on an NA element unless na_rm=true.", func(cs *value.CallSite) (value.Value, error) {
		xs, hadNA, ok := numericSlice(cs.Args[0], naRmFlag(cs))
		if !ok {
			return argErr("min", "expected a numeric vector")
		}
		if hadNA {
			return value.Err(value.ErrType, "min: encountered NA value; pass na_rm=true to skip"), nil
		}
		if len(xs) == 0 {
			return value.NA(value.NAFloat), nil
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x < m {
				m = x
			}
		}
		return value.Float(m), nil
	})

	bi(reg, "max", []string{"x"}, []string{"na_rm"}, false, "Returns the largest element of a numeric vector; TypeError on an NA element unless na_rm=true.", func(cs *value.CallSite) (value.Value, error) {
		xs, hadNA, ok := numericSlice(cs.Args[0], naRmFlag(cs))
		if !ok {
			return argErr("max", "expected a numeric vector")
		}
		if hadNA {
			return value.Err(value.ErrType, "max: encountered NA value; pass na_rm=true to skip"), nil
		}
		if len(xs) == 0 {
			return value.NA(value.NAFloat), nil
		}
		m := xs[0]
		for _, x := range xs[1:] {
			if x > m {
				m = x
			}
		}
		return value.Float(m), nil
	})

	bi(reg, "sqrt", []string{"x"}, nil, false, "Square root. NaN-producing input raises a ValueError.", func(cs *value.CallSite) (value.Value, error) {
		x := cs.Args[0]
		if x.IsNA() {
			return value.NA(value.NAFloat), nil
		}
		f, ok := toScalarFloat(x)
		if !ok {
			return argErr("sqrt", "expected a numeric argument")
		}
		if f < 0 {
			return value.Err(value.ErrValue, "sqrt: negative argument"), nil
		}
		return value.Float(math.Sqrt(f)), nil
	})

	bi(reg, "abs", []string{"x"}, nil, false, "Absolute value.", func(cs *value.CallSite) (value.Value, error) {
		x := cs.Args[0]
		if x.IsNA() {
			return x, nil
		}
		switch x.Kind {
		case value.KindInt:
			if x.I < 0 {
				return value.Int(-x.I), nil
			}
			return x, nil
		case value.KindFloat:
			return value.Float(math.Abs(x.F)), nil
		default:
			return argErr("abs", "expected a numeric argument")
		}
	})

	bi(reg, "round", []string{"x"}, []string{"digits"}, false, "Rounds to the given number of decimal digits (default 0).", func(cs *value.CallSite) (value.Value, error) {
		f, ok := toScalarFloat(cs.Args[0])
		if !ok {
			return argErr("round", "expected a numeric argument")
		}
		digits := int64(0)
		if d, ok := cs.Named["digits"]; ok {
			digits = d.I
		} else if len(cs.Args) > 1 {
			digits = cs.Args[1].I
		}
		mult := math.Pow(10, float64(digits))
		return value.Float(math.Round(f*mult) / mult), nil
	})
}

func toScalarFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.I), true
	case value.KindFloat:
		return v.F, true
	}
	return 0, false
}

// ---- string helpers ----

func registerString(reg *builtin.Registry) {
	bi(reg, "paste", nil, []string{"sep"}, true, "Concatenates its arguments' string forms, joined by sep (default \" \").", func(cs *value.CallSite) (value.Value, error) {
		sep := " "
		if s, ok := cs.Named["sep"]; ok {
			sep = s.S
		}
		parts := make([]string, len(cs.Args))
		for i, a := range cs.Args {
			parts[i] = a.String()
		}
		return value.Str(strings.Join(parts, sep)), nil
	})

	bi(reg, "upper", []string{"x"}, nil, false, "Uppercases a string.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].Kind != value.KindString {
			return argErr("upper", "expected a string")
		}
		return value.Str(strings.ToUpper(cs.Args[0].S)), nil
	})

	bi(reg, "lower", []string{"x"}, nil, false, "Lowercases a string.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].Kind != value.KindString {
			return argErr("lower", "expected a string")
		}
		return value.Str(strings.ToLower(cs.Args[0].S)), nil
	})

	bi(reg, "str_to_num", []string{"x"}, nil, false, "Parses a string as a float; NA on failure.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].Kind != value.KindString {
			return argErr("str_to_num", "expected a string")
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(cs.Args[0].S), 64)
		if err != nil {
			return value.NA(value.NAFloat), nil
		}
		return value.Float(f), nil
	})
}

// ---- data frame construction & introspection ----

func registerDataFrame(reg *builtin.Registry) {
	bi(reg, "data_frame", nil, nil, true, "Constructs a DataFrame from name=vector named arguments, all equal length.", func(cs *value.CallSite) (value.Value, error) {
		if len(cs.Named) == 0 {
			return argErr("data_frame", "expected at least one name=vector argument")
		}
		names := make([]string, 0, len(cs.Named))
		for n := range cs.Named {
			names = append(names, n)
		}
		sort.Strings(names)
		if raw, ok := firstRawNamesOrder(cs); ok {
			names = raw
		}
		cols := make([]table.ColumnView, len(names))
		for i, n := range names {
			v := cs.Named[n]
			var elems []value.Value
			if v.Kind == value.KindVector {
				elems = v.Vector
			} else {
				elems = []value.Value{v}
			}
			typ := column.InferColumnType(elems)
			col, err := column.BuildColumn(typ, elems)
			if err != nil {
				return value.Err(value.ErrType, fmt.Sprintf("data_frame: column %q: %s", n, err.Error())), nil
			}
			cols[i] = col
		}
		t, err := table.New(names, cols)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
		return value.DataFrame(t), nil
	})

	bi(reg, "nrow", []string{"df"}, nil, false, "Number of rows in a DataFrame.", func(cs *value.CallSite) (value.Value, error) {
		df, ok := asDataFrame(cs.Args[0])
		if !ok {
			return argErr("nrow", "expected a DataFrame")
		}
		return value.Int(int64(df.NumRows())), nil
	})

	bi(reg, "ncol", []string{"df"}, nil, false, "Number of columns in a DataFrame.", func(cs *value.CallSite) (value.Value, error) {
		df, ok := asDataFrame(cs.Args[0])
		if !ok {
			return argErr("ncol", "expected a DataFrame")
		}
		return value.Int(int64(df.NumColumns())), nil
	})

	bi(reg, "colnames", []string{"df"}, nil, false, "Column names of a DataFrame, in order.", func(cs *value.CallSite) (value.Value, error) {
		df, ok := asDataFrame(cs.Args[0])
		if !ok {
			return argErr("colnames", "expected a DataFrame")
		}
		names := df.ColumnNames()
		out := make([]value.Value, len(names))
		for i, n := range names {
			out[i] = value.Str(n)
		}
		return value.Vector(out), nil
	})
}

func asDataFrame(v value.Value) (table.Table, bool) {
	if v.Kind != value.KindDataFrame {
		return nil, false
	}
	return v.DataFrame, true
}

// firstRawNamesOrder recovers the declaration order of named arguments from
// CallSite.Raw, so data_frame()'s columns preserve the order the caller
// wrote them in rather than a sorted order (spec.md's determinism
// requirement covers storage, not column display order).
func firstRawNamesOrder(cs *value.CallSite) ([]string, bool) {
	if len(cs.Raw) == 0 {
		return nil, false
	}
	var out []string
	for _, r := range cs.Raw {
		if r.Name != nil {
			out = append(out, *r.Name)
		}
	}
	if len(out) != len(cs.Named) {
		return nil, false
	}
	return out, true
}

// ---- CSV I/O ----

// guardFilesystem returns a non-nil Error value if a filesystem-touching
// builtin is being called from inside a pipeline node expression while the
// process is not running in --unsafe mode (spec.md §6.3).
func guardFilesystem(name string) (value.Value, bool) {
	if pipeline.InExecution() && !config.Get().Pipeline.Unsafe {
		return value.Err(value.ErrGeneric, name+": filesystem access inside a pipeline node requires --unsafe"), true
	}
	return value.Value{}, false
}

func registerIO(reg *builtin.Registry) {
	bi(reg, "read_csv", []string{"path"}, []string{"separator"}, false, "Reads a CSV file (fields split on separator, default \",\") into a DataFrame, inferring each column's type from its first non-empty cell.", func(cs *value.CallSite) (value.Value, error) {
		if errv, blocked := guardFilesystem("read_csv"); blocked {
			return errv, nil
		}
		if cs.Args[0].Kind != value.KindString {
			return argErr("read_csv", "expected a string path")
		}
		f, err := os.Open(cs.Args[0].S)
		if err != nil {
			return errors.File("read_csv: "+err.Error(), err).WithContext("path", cs.Args[0].S).ToValue(), nil
		}
		defer f.Close()
		r := csv.NewReader(f)
		sep := ""
		if s, ok := cs.Named["separator"]; ok {
			sep = s.S
		} else if len(cs.Args) > 1 {
			sep = cs.Args[1].S
		}
		if sep != "" {
			r.Comma = []rune(sep)[0]
		}
		rows, err := r.ReadAll()
		if err != nil {
			return errors.File("read_csv: "+err.Error(), err).WithContext("path", cs.Args[0].S).ToValue(), nil
		}
		if len(rows) == 0 {
			return value.Err(value.ErrValue, "read_csv: empty file"), nil
		}
		header := rows[0]
		data := rows[1:]
		cols := make([]table.ColumnView, len(header))
		for ci, name := range header {
			vals := make([]value.Value, len(data))
			for ri, row := range data {
				vals[ri] = inferCSVScalar(row[ci])
			}
			_ = name
			typ := column.InferColumnType(vals)
			col, err := column.BuildColumn(typ, vals)
			if err != nil {
				return value.Err(value.ErrType, err.Error()), nil
			}
			cols[ci] = col
		}
		t, err := table.New(header, cols)
		if err != nil {
			return value.Err(value.ErrValue, err.Error()), nil
		}
		return value.DataFrame(t), nil
	})

	bi(reg, "write_csv", []string{"df", "path"}, nil, false, "Writes a DataFrame to a CSV file.", func(cs *value.CallSite) (value.Value, error) {
		if errv, blocked := guardFilesystem("write_csv"); blocked {
			return errv, nil
		}
		df, ok := asDataFrame(cs.Args[0])
		if !ok {
			return argErr("write_csv", "expected a DataFrame")
		}
		if cs.Args[1].Kind != value.KindString {
			return argErr("write_csv", "expected a string path")
		}
		f, err := os.Create(cs.Args[1].S)
		if err != nil {
			return errors.File("write_csv: "+err.Error(), err).WithContext("path", cs.Args[1].S).ToValue(), nil
		}
		defer f.Close()
		w := csv.NewWriter(f)
		names := df.ColumnNames()
		if err := w.Write(names); err != nil {
			return errors.File("write_csv: "+err.Error(), err).WithContext("path", cs.Args[1].S).ToValue(), nil
		}
		for r := 0; r < df.NumRows(); r++ {
			row := make([]string, len(names))
			for i, n := range names {
				c, _ := df.Column(n)
				row[i] = cellToCSV(c.GetValueAt(r))
			}
			if err := w.Write(row); err != nil {
				return errors.File("write_csv: "+err.Error(), err).WithContext("path", cs.Args[1].S).ToValue(), nil
			}
		}
		w.Flush()
		return value.Null(), nil
	})
}

func inferCSVScalar(s string) value.Value {
	if s == "" || s == "NA" {
		return value.NA(value.NAGeneric)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	if s == "true" || s == "false" {
		return value.Bool(s == "true")
	}
	return value.Str(s)
}

func cellToCSV(c table.Cell) string {
	if c.Null {
		return "NA"
	}
	switch c.Type {
	case table.Int64:
		return strconv.FormatInt(c.I, 10)
	case table.Float64Type:
		return strconv.FormatFloat(c.F, 'g', -1, 64)
	case table.BoolType:
		if c.B {
			return "true"
		}
		return "false"
	case table.StringType:
		return c.S
	default:
		return ""
	}
}

// ---- assertion / error helpers ----

func registerErrors(reg *builtin.Registry) {
	bi(reg, "assert", []string{"cond"}, []string{"message"}, false, "Raises an AssertionError if cond is not true; a distinct message if cond is NA.", func(cs *value.CallSite) (value.Value, error) {
		if cs.Args[0].IsNA() {
			return value.Err(value.ErrAssertion, "assertion failed: received NA"), nil
		}
		b, ok := cs.Args[0].Truthy()
		if !ok || !b {
			msg := "assertion failed"
			if m, ok := cs.Named["message"]; ok {
				msg = m.S
			} else if len(cs.Args) > 1 {
				msg = cs.Args[1].S
			}
			return value.Err(value.ErrAssertion, msg), nil
		}
		return value.Bool(true), nil
	})

	bi(reg, "stop", []string{"message"}, nil, false, "Raises a GenericError with the given message.", func(cs *value.CallSite) (value.Value, error) {
		return value.Err(value.ErrGeneric, cs.Args[0].S), nil
	})

	biAbsorbsError(reg, "error_code", []string{"e"}, nil, false, "Returns an Error value's code as a string.", func(cs *value.CallSite) (value.Value, error) {
		if !cs.Args[0].IsError() {
			return argErr("error_code", "expected an Error value")
		}
		return value.Str(string(cs.Args[0].Error.Code)), nil
	})

	biAbsorbsError(reg, "error_message", []string{"e"}, nil, false, "Returns an Error value's message.", func(cs *value.CallSite) (value.Value, error) {
		if !cs.Args[0].IsError() {
			return argErr("error_message", "expected an Error value")
		}
		return value.Str(cs.Args[0].Error.Message), nil
	})

	biAbsorbsError(reg, "error_context", []string{"e"}, nil, false, "Returns an Error value's context as a Dict.", func(cs *value.CallSite) (value.Value, error) {
		if !cs.Args[0].IsError() {
			return argErr("error_context", "expected an Error value")
		}
		ctx := cs.Args[0].Error.Context
		keys := make([]string, 0, len(ctx))
		for k := range ctx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return value.Dict(keys, ctx), nil
	})
}
