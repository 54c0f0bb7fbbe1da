package builtins

import (
	"math"
	"sort"

	"tlang/core/builtin"
	"tlang/core/value"
)

// registerNumeric implements the dispatch contract and NA policy for
// spec.md §1's "we specify their dispatch contract and NA policy, not their
// numerics" statistics/linear-algebra family. Each kernel below is a real,
// minimal float64 implementation (not a stub) so `run` programs exercising
// them produce actual output, per SPEC_FULL.md §3.6.
func registerNumeric(reg *builtin.Registry) {
	bi(reg, "sd", []string{"x"}, nil, false, "Sample standard deviation of a numeric vector, skipping NA.", func(cs *value.CallSite) (value.Value, error) {
		xs, _, ok := numericSlice(cs.Args[0], true)
		if !ok {
			return argErr("sd", "expected a numeric vector")
		}
		if len(xs) < 2 {
			return value.NA(value.NAFloat), nil
		}
		mean := meanOf(xs)
		var ss float64
		for _, x := range xs {
			d := x - mean
			ss += d * d
		}
		return value.Float(math.Sqrt(ss / float64(len(xs)-1))), nil
	})

	bi(reg, "quantile", []string{"x", "p"}, nil, false, "Linear-interpolated quantile of a numeric vector at probability p in [0,1].", func(cs *value.CallSite) (value.Value, error) {
		xs, _, ok := numericSlice(cs.Args[0], true)
		if !ok {
			return argErr("quantile", "expected a numeric vector")
		}
		p, ok := toScalarFloat(cs.Args[1])
		if !ok || p < 0 || p > 1 {
			return value.Err(value.ErrValue, "quantile: p must be a number in [0, 1]"), nil
		}
		if len(xs) == 0 {
			return value.NA(value.NAFloat), nil
		}
		sorted := append([]float64{}, xs...)
		sort.Float64s(sorted)
		idx := p * float64(len(sorted)-1)
		lo := int(math.Floor(idx))
		hi := int(math.Ceil(idx))
		if lo == hi {
			return value.Float(sorted[lo]), nil
		}
		frac := idx - float64(lo)
		return value.Float(sorted[lo]*(1-frac) + sorted[hi]*frac), nil
	})

	bi(reg, "cor", []string{"x", "y"}, nil, false, "Pearson correlation coefficient between two equal-length numeric vectors.", func(cs *value.CallSite) (value.Value, error) {
		xs, _, ok1 := numericSlice(cs.Args[0], true)
		ys, _, ok2 := numericSlice(cs.Args[1], true)
		if !ok1 || !ok2 {
			return argErr("cor", "expected two numeric vectors")
		}
		if len(xs) != len(ys) || len(xs) == 0 {
			return value.Err(value.ErrValue, "cor: vectors must have equal, nonzero length"), nil
		}
		mx, my := meanOf(xs), meanOf(ys)
		var sxy, sx, sy float64
		for i := range xs {
			dx, dy := xs[i]-mx, ys[i]-my
			sxy += dx * dy
			sx += dx * dx
			sy += dy * dy
		}
		if sx == 0 || sy == 0 {
			return value.NA(value.NAFloat), nil
		}
		return value.Float(sxy / math.Sqrt(sx*sy)), nil
	})

	bi(reg, "lm", []string{"y", "x"}, nil, false, "Simple ordinary-least-squares fit of y ~ x; returns a dict with intercept and slope.", func(cs *value.CallSite) (value.Value, error) {
		ys, _, ok1 := numericSlice(cs.Args[0], true)
		xs, _, ok2 := numericSlice(cs.Args[1], true)
		if !ok1 || !ok2 {
			return argErr("lm", "expected two numeric vectors")
		}
		if len(xs) != len(ys) || len(xs) < 2 {
			return value.Err(value.ErrValue, "lm: vectors must have equal length >= 2"), nil
		}
		mx, my := meanOf(xs), meanOf(ys)
		var num, den float64
		for i := range xs {
			dx := xs[i] - mx
			num += dx * (ys[i] - my)
			den += dx * dx
		}
		if den == 0 {
			return value.Err(value.ErrValue, "lm: predictor has zero variance"), nil
		}
		slope := num / den
		intercept := my - slope*mx
		return value.Dict([]string{"intercept", "slope"}, map[string]value.Value{
			"intercept": value.Float(intercept),
			"slope":     value.Float(slope),
		}), nil
	})

	bi(reg, "matmul", []string{"a", "b"}, nil, false, "Matrix product of two rank-2 NDArray values.", func(cs *value.CallSite) (value.Value, error) {
		a, b := cs.Args[0], cs.Args[1]
		if a.Kind != value.KindNDArray || b.Kind != value.KindNDArray || len(a.NDArray.Shape) != 2 || len(b.NDArray.Shape) != 2 {
			return argErr("matmul", "expected two rank-2 NDArray values")
		}
		ar, ac := a.NDArray.Shape[0], a.NDArray.Shape[1]
		br, bc := b.NDArray.Shape[0], b.NDArray.Shape[1]
		if ac != br {
			return value.Err(value.ErrValue, "matmul: inner dimensions must match"), nil
		}
		out := make([]float64, ar*bc)
		for i := 0; i < ar; i++ {
			for j := 0; j < bc; j++ {
				var sum float64
				for k := 0; k < ac; k++ {
					sum += a.NDArray.Data[i*ac+k] * b.NDArray.Data[k*bc+j]
				}
				out[i*bc+j] = sum
			}
		}
		return value.NDArray([]int{ar, bc}, out), nil
	})

	bi(reg, "kron", []string{"a", "b"}, nil, false, "Kronecker product of two rank-2 NDArray values.", func(cs *value.CallSite) (value.Value, error) {
		a, b := cs.Args[0], cs.Args[1]
		if a.Kind != value.KindNDArray || b.Kind != value.KindNDArray || len(a.NDArray.Shape) != 2 || len(b.NDArray.Shape) != 2 {
			return argErr("kron", "expected two rank-2 NDArray values")
		}
		ar, ac := a.NDArray.Shape[0], a.NDArray.Shape[1]
		br, bc := b.NDArray.Shape[0], b.NDArray.Shape[1]
		outR, outC := ar*br, ac*bc
		out := make([]float64, outR*outC)
		for i := 0; i < ar; i++ {
			for j := 0; j < ac; j++ {
				aij := a.NDArray.Data[i*ac+j]
				for p := 0; p < br; p++ {
					for q := 0; q < bc; q++ {
						row := i*br + p
						col := j*bc + q
						out[row*outC+col] = aij * b.NDArray.Data[p*bc+q]
					}
				}
			}
		}
		return value.NDArray([]int{outR, outC}, out), nil
	})

	bi(reg, "inv", []string{"a"}, nil, false, "Inverse of a square rank-2 NDArray, via Gauss-Jordan elimination.", func(cs *value.CallSite) (value.Value, error) {
		a := cs.Args[0]
		if a.Kind != value.KindNDArray || len(a.NDArray.Shape) != 2 || a.NDArray.Shape[0] != a.NDArray.Shape[1] {
			return argErr("inv", "expected a square rank-2 NDArray")
		}
		n := a.NDArray.Shape[0]
		aug := make([][]float64, n)
		for i := 0; i < n; i++ {
			aug[i] = make([]float64, 2*n)
			copy(aug[i][:n], a.NDArray.Data[i*n:(i+1)*n])
			aug[i][n+i] = 1
		}
		for col := 0; col < n; col++ {
			pivot := col
			for r := col + 1; r < n; r++ {
				if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
					pivot = r
				}
			}
			if math.Abs(aug[pivot][col]) < 1e-12 {
				return value.Err(value.ErrValue, "inv: matrix is singular"), nil
			}
			aug[col], aug[pivot] = aug[pivot], aug[col]
			pv := aug[col][col]
			for c := 0; c < 2*n; c++ {
				aug[col][c] /= pv
			}
			for r := 0; r < n; r++ {
				if r == col {
					continue
				}
				f := aug[r][col]
				for c := 0; c < 2*n; c++ {
					aug[r][c] -= f * aug[col][c]
				}
			}
		}
		out := make([]float64, n*n)
		for i := 0; i < n; i++ {
			copy(out[i*n:(i+1)*n], aug[i][n:])
		}
		return value.NDArray([]int{n, n}, out), nil
	})

	bi(reg, "log", []string{"x"}, nil, false, "Natural logarithm; NA for non-positive input.", func(cs *value.CallSite) (value.Value, error) {
		f, ok := toScalarFloat(cs.Args[0])
		if !ok {
			return argErr("log", "expected a numeric argument")
		}
		if f <= 0 {
			return value.NA(value.NAFloat), nil
		}
		return value.Float(math.Log(f)), nil
	})

	bi(reg, "exp", []string{"x"}, nil, false, "Natural exponential.", func(cs *value.CallSite) (value.Value, error) {
		f, ok := toScalarFloat(cs.Args[0])
		if !ok {
			return argErr("exp", "expected a numeric argument")
		}
		return value.Float(math.Exp(f)), nil
	})

	bi(reg, "pow", []string{"x", "y"}, nil, false, "x raised to the power y.", func(cs *value.CallSite) (value.Value, error) {
		x, ok1 := toScalarFloat(cs.Args[0])
		y, ok2 := toScalarFloat(cs.Args[1])
		if !ok1 || !ok2 {
			return argErr("pow", "expected two numeric arguments")
		}
		return value.Float(math.Pow(x, y)), nil
	})
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
