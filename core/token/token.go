// Package token defines the lexical tokens of the T language.
package token

import (
	"github.com/hashicorp/hcl/v2"
)

// Kind identifies a lexical token category.
type Kind int

const (
	EOF Kind = iota
	ILLEGAL
	NEWLINE

	IDENT
	INT
	FLOAT
	STRING
	COLUMNREF // $name

	// Keywords
	IF
	ELSE
	AND
	OR
	NOT
	TRUE
	FALSE
	NULL
	NA
	PIPELINE
	INTENT
	IMPORT
	EXPORT

	// Punctuation
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE
	COMMA
	SEMI
	DOT
	BACKSLASH
	COLON

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	EQ    // ==
	NEQ   // !=
	LT
	GT
	LE
	GE
	ANDAND // &&
	OROR   // ||
	AMP    // &
	PIPE   // |
	BANG   // !
	TILDE  // ~

	// Broadcast operators
	BPLUS  // .+
	BMINUS // .-
	BSTAR  // .*
	BSLASH // ./
	BEQ    // .==
	BLE    // .<=
	BGE    // .>=
	BLT    // .<
	BGT    // .>
	BAMP   // .&
	BPIPEOP // .|

	ASSIGN   // =
	REASSIGN // :=
	PIPEOP   // |>
	SAFEPIPE // ?|>
)

var names = map[Kind]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", NEWLINE: "NEWLINE",
	IDENT: "IDENT", INT: "INT", FLOAT: "FLOAT", STRING: "STRING", COLUMNREF: "COLUMNREF",
	IF: "if", ELSE: "else", AND: "and", OR: "or", NOT: "not",
	TRUE: "true", FALSE: "false", NULL: "null", NA: "NA",
	PIPELINE: "pipeline", INTENT: "intent", IMPORT: "import", EXPORT: "export",
	LPAREN: "(", RPAREN: ")", LBRACKET: "[", RBRACKET: "]", LBRACE: "{", RBRACE: "}",
	COMMA: ",", SEMI: ";", DOT: ".", BACKSLASH: "\\", COLON: ":",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	EQ: "==", NEQ: "!=", LT: "<", GT: ">", LE: "<=", GE: ">=",
	ANDAND: "&&", OROR: "||", AMP: "&", PIPE: "|", BANG: "!", TILDE: "~",
	BPLUS: ".+", BMINUS: ".-", BSTAR: ".*", BSLASH: "./",
	BEQ: ".==", BLE: ".<=", BGE: ".>=", BLT: ".<", BGT: ".>", BAMP: ".&", BPIPEOP: ".|",
	ASSIGN: "=", REASSIGN: ":=", PIPEOP: "|>", SAFEPIPE: "?|>",
}

// String returns the textual representation of a Kind.
func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// Keywords maps keyword text to its token Kind.
var Keywords = map[string]Kind{
	"if": IF, "else": ELSE, "and": AND, "or": OR, "not": NOT,
	"true": TRUE, "false": FALSE, "null": NULL, "NA": NA,
	"pipeline": PIPELINE, "intent": INTENT, "import": IMPORT, "export": EXPORT,
}

// Token is a single lexical token with its source range.
type Token struct {
	Kind    Kind
	Literal string
	Range   hcl.Range
	// DocComment holds a contiguous preceding "--#" comment block, if any,
	// attached to this token for tdoc extraction (SPEC_FULL.md §3.3).
	DocComment string
}

// Pos constructs an hcl.Pos.
func Pos(line, col, byteOffset int) hcl.Pos {
	return hcl.Pos{Line: line, Column: col, Byte: byteOffset}
}
