// Package cmdline builds the command lines passed to the engine's batch files and tools.
// Arguments are kept as an ordered list of tokens so they serialize deterministically.
package cmdline

import (
	"strings"

	"github.com/google/shlex"
)

type tokenKind int

const (
	kindFlag tokenKind = iota
	kindRaw
)

// Token is a single command-line element
type Token struct {
	Name   string
	Value  string
	HasVal bool
	Quoted bool
	kind   tokenKind
}

// String renders the token as it appears on a command line
func (t Token) String() string {
	if t.kind == kindRaw || !t.HasVal {
		return t.Name
	}
	if t.Quoted {
		return t.Name + "=\"" + t.Value + "\""
	}
	return t.Name + "=" + t.Value
}

// argv renders the token as process arguments, without shell quoting
func (t Token) argv() []string {
	switch {
	case t.kind == kindRaw:
		return splitRaw(t.Name)
	case !t.HasVal:
		return []string{t.Name}
	default:
		return []string{t.Name + "=" + t.Value}
	}
}

// splitRaw splits user text the way a POSIX shell would, so a quoted
// value with spaces stays one argument. Unbalanced quotes fall back to
// whitespace splitting.
func splitRaw(text string) []string {
	words, err := shlex.Split(text)
	if err != nil {
		return strings.Fields(text)
	}
	return words
}

// Builder accumulates tokens in order
type Builder struct {
	tokens []Token
}

// New creates an empty builder
func New() *Builder {
	return &Builder{}
}

// Flag appends a flag without a value, e.g. -Clean
func (b *Builder) Flag(name string) *Builder {
	b.tokens = append(b.tokens, Token{Name: name})
	return b
}

// Value appends name=value
func (b *Builder) Value(name, value string) *Builder {
	b.tokens = append(b.tokens, Token{Name: name, Value: value, HasVal: true})
	return b
}

// Quoted appends name="value"
func (b *Builder) Quoted(name, value string) *Builder {
	b.tokens = append(b.tokens, Token{Name: name, Value: value, HasVal: true, Quoted: true})
	return b
}

// Bool appends name=true or name=false
func (b *Builder) Bool(name string, value bool) *Builder {
	return b.Value(name, BoolString(value))
}

// Set appends a BuildGraph option as -set:Name=value
func (b *Builder) Set(name, value string) *Builder {
	return b.Value("-set:"+name, value)
}

// SetBool appends -set:Name=true|false
func (b *Builder) SetBool(name string, value bool) *Builder {
	return b.Set(name, BoolString(value))
}

// Raw appends user supplied text verbatim
func (b *Builder) Raw(text string) *Builder {
	if strings.TrimSpace(text) == "" {
		return b
	}
	b.tokens = append(b.tokens, Token{Name: text, kind: kindRaw})
	return b
}

// Tokens returns a copy of the accumulated tokens
func (b *Builder) Tokens() []Token {
	out := make([]Token, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// String serializes the tokens separated by single spaces
func (b *Builder) String() string {
	parts := make([]string, 0, len(b.tokens))
	for _, t := range b.tokens {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " ")
}

// Args returns the tokens as an argv slice for exec
func (b *Builder) Args() []string {
	var args []string
	for _, t := range b.tokens {
		args = append(args, t.argv()...)
	}
	return args
}

// BoolString renders a bool the way BuildGraph expects it
func BoolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
