package lexer

import (
	"testing"

	"tlang/core/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeBasicExpression(t *testing.T) {
	toks := New("t", "x = 1 + 2").Tokenize()
	got := kinds(toks)
	want := []token.Kind{token.IDENT, token.ASSIGN, token.INT, token.PLUS, token.INT, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeColumnRef(t *testing.T) {
	toks := New("t", "$age").Tokenize()
	if toks[0].Kind != token.COLUMNREF {
		t.Fatalf("expected a single COLUMNREF token, got %v", toks[0].Kind)
	}
	if toks[0].Literal != "age" {
		t.Errorf("got column name %q, want %q", toks[0].Literal, "age")
	}
}

func TestTokenizeRebindOperator(t *testing.T) {
	toks := New("t", "x := 2").Tokenize()
	if toks[1].Kind != token.REASSIGN {
		t.Fatalf("expected REASSIGN, got %v", toks[1].Kind)
	}
}

func TestTokenizePipeOperators(t *testing.T) {
	toks := New("t", "x |> f() ?|> g()").Tokenize()
	var pipeKinds []token.Kind
	for _, tk := range toks {
		if tk.Kind == token.PIPEOP || tk.Kind == token.SAFEPIPE {
			pipeKinds = append(pipeKinds, tk.Kind)
		}
	}
	if len(pipeKinds) != 2 || pipeKinds[0] != token.PIPEOP || pipeKinds[1] != token.SAFEPIPE {
		t.Fatalf("got pipe kinds %v, want [PIPEOP SAFEPIPE]", pipeKinds)
	}
}

func TestTokenizeBroadcastOperators(t *testing.T) {
	toks := New("t", "a .+ b .== c").Tokenize()
	var ops []token.Kind
	for _, tk := range toks {
		if tk.Kind == token.BPLUS || tk.Kind == token.BEQ {
			ops = append(ops, tk.Kind)
		}
	}
	if len(ops) != 2 || ops[0] != token.BPLUS || ops[1] != token.BEQ {
		t.Fatalf("got broadcast ops %v, want [BPLUS BEQ]", ops)
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks := New("t", `"a\nb\tc\"d"`).Tokenize()
	if toks[0].Kind != token.STRING {
		t.Fatalf("expected STRING, got %v", toks[0].Kind)
	}
	want := "a\nb\tc\"d"
	if toks[0].Literal != want {
		t.Errorf("got %q, want %q", toks[0].Literal, want)
	}
}

func TestTokenizeCommentsAreSkippedButDocCommentsCaptured(t *testing.T) {
	src := "-- a plain comment\n--# documented\nf = \\(x) x"
	toks := New("t", src).Tokenize()
	for _, tk := range toks {
		if tk.Kind == token.ILLEGAL {
			t.Fatalf("unexpected ILLEGAL token for comment-bearing source: %+v", tk)
		}
	}
	var doc string
	for _, tk := range toks {
		if tk.Kind == token.IDENT && tk.Literal == "f" {
			doc = tk.DocComment
		}
	}
	if doc != "documented" {
		t.Fatalf("got doc comment %q on `f`, want %q", doc, "documented")
	}
}

func TestTokenizeNewlineTerminatesStatement(t *testing.T) {
	toks := New("t", "x = 1\ny = 2").Tokenize()
	var newlines int
	for _, tk := range toks {
		if tk.Kind == token.NEWLINE {
			newlines++
		}
	}
	if newlines == 0 {
		t.Fatalf("expected at least one NEWLINE token separating statements")
	}
}

func TestTokenizeKeywords(t *testing.T) {
	toks := New("t", "if else and or not true false null NA pipeline intent import export").Tokenize()
	want := []token.Kind{
		token.IF, token.ELSE, token.AND, token.OR, token.NOT,
		token.TRUE, token.FALSE, token.NULL, token.NA,
		token.PIPELINE, token.INTENT, token.IMPORT, token.EXPORT, token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
