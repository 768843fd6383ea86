package lexer

import "fmt"

// Kind is the lexical class of a token.
type Kind uint8

const (
	EOF Kind = iota
	Keyword
	Ident
	Integer
	Float
	String
	Operator
	Punct
)

var kindNames = [...]string{
	EOF:      "end of input",
	Keyword:  "keyword",
	Ident:    "identifier",
	Integer:  "integer",
	Float:    "float",
	String:   "string",
	Operator: "operator",
	Punct:    "punctuation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Pos is a source position. Line and Column are 1-based; Offset is a byte
// offset into the statement text.
type Pos struct {
	Offset int
	Line   int
	Column int
}

// Token is one lexeme. Keywords are upper-cased, with the text as written
// kept in Raw; string literals hold the unescaped contents without quotes.
type Token struct {
	Kind   Kind
	Lexeme string
	Raw    string
	Pos    Pos
}

// Is reports whether t is the keyword, operator or punctuation s.
func (t Token) Is(s string) bool {
	switch t.Kind {
	case Keyword, Operator, Punct:
		return t.Lexeme == s
	}
	return false
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case String:
		return fmt.Sprintf("'%s'", t.Lexeme)
	case Keyword, Operator, Punct:
		return fmt.Sprintf("%q", t.Lexeme)
	default:
		return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
	}
}

var keywords = map[string]struct{}{}

func init() {
	for _, k := range []string{
		"SELECT", "FROM", "WHERE", "INSERT", "INTO", "VALUES", "UPDATE", "SET",
		"DELETE", "CREATE", "TABLE", "DROP", "INDEX", "ON", "JOIN", "INNER",
		"LEFT", "RIGHT", "FULL", "OUTER", "CROSS", "GROUP", "BY", "HAVING", "ORDER", "ASC", "DESC",
		"LIMIT", "OFFSET", "AND", "OR", "NOT", "NULL", "IS", "IN", "BETWEEN",
		"LIKE", "AS", "DISTINCT", "TRUE", "FALSE", "PRIMARY", "KEY", "UNIQUE",
		"FOREIGN", "REFERENCES", "AUTO_INCREMENT", "AUTOINCREMENT", "DEFAULT",
		"IF", "EXISTS",
	} {
		keywords[k] = struct{}{}
	}
	for k := range typeNames {
		keywords[k] = struct{}{}
	}
}

// typeNames are keywords that may also be used as identifiers, so a column
// can be called "date" or "text".
var typeNames = map[string]struct{}{
	"INT": {}, "INTEGER": {}, "FLOAT": {}, "DOUBLE": {}, "REAL": {},
	"VARCHAR": {}, "CHAR": {}, "TEXT": {}, "BOOL": {}, "BOOLEAN": {},
	"DATE": {}, "TIMESTAMP": {}, "DATETIME": {},
}

// IsKeyword reports whether the upper-cased word is reserved or a type name.
func IsKeyword(upper string) bool {
	_, ok := keywords[upper]
	return ok
}

// IsTypeName reports whether the upper-cased word names a column type.
func IsTypeName(upper string) bool {
	_, ok := typeNames[upper]
	return ok
}
