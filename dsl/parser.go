// Package dsl 解析表情包配方文件。
//
//	meme "monday" {
//	  image: "photos/cat.jpg"
//	  size: 600x600
//	  top: "hello ${user.name}"
//	  frame { top: "one" }
//	}
package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Size", Pattern: `(?:\d+\.\d+|\d+)x(?:\d+\.\d+|\d+)`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:ms|px|s|%|x)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[:;]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	fileParser = participle.MustBuild[File](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// File is the root AST node of a recipe file.
type File struct {
	Memes []*Meme `parser:"Newline* ( @@ Newline* )*"`
}

// Meme is one named recipe.
type Meme struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  StringLiteral  `parser:"'meme' @String Newline*"`
	Block *Block         `parser:"@@"`
}

// Block is a delimited list of statements.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement inside a block: a nested frame or an assignment.
type Statement struct {
	Frame      *FrameBlock `parser:"  @@"`
	Assignment *Assignment `parser:"| @@"`
}

// Kind returns the human-readable statement type.
func (s *Statement) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Frame != nil:
		return "frame"
	case s.Assignment != nil:
		return "assignment"
	default:
		return "unknown"
	}
}

// FrameBlock overrides caption settings for one animation frame.
type FrameBlock struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Block *Block         `parser:"'frame' Newline* @@"`
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident"`
	Value *Value         `parser:"':' @@"`
}

// Value is a single literal.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Size   *string        `parser:"| @Size"`
	Number *string        `parser:"| @Number"`
	Ident  *string        `parser:"| @Ident"`
}

// Text returns the literal as written (strings unquoted).
func (v *Value) Text() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Size != nil:
		return *v.Size
	case v.Number != nil:
		return *v.Number
	case v.Ident != nil:
		return *v.Ident
	default:
		return ""
	}
}

// IsString reports whether the value was a quoted string.
func (v *Value) IsString() bool { return v != nil && v.String != nil }

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses recipe content from an io.Reader.
func Parse(r io.Reader) (*File, error) {
	return fileParser.Parse("", r)
}

// ParseString parses recipe content from a string.
func ParseString(input string) (*File, error) {
	return fileParser.ParseString("", input)
}

// ParseNamed parses recipe content, reporting positions against filename.
func ParseNamed(filename string, r io.Reader) (*File, error) {
	return fileParser.Parse(filename, r)
}
