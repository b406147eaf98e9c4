package expr

// TokenKind enumerates the DSL's lexical token kinds (spec §4.1 grammar
// sketch).
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNumber
	TokString
	TokIdent
	TokDot
	TokLParen
	TokRParen
	TokComma
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokEq
	TokNeq
	TokLt
	TokLte
	TokGt
	TokGte
	TokAnd
	TokOr
	TokNot
	TokTrue
	TokFalse
	TokNull
	TokDate
)

// Token is one lexed unit with its 1-based source position.
type Token struct {
	Kind   TokenKind
	Text   string
	Num    float64
	Line   int
	Col    int
}

var keywords = map[string]TokenKind{
	"and":   TokAnd,
	"or":    TokOr,
	"not":   TokNot,
	"true":  TokTrue,
	"false": TokFalse,
	"null":  TokNull,
	"date":  TokDate,
}
