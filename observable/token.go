package observable

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces identity tokens for instances and dispatch cycles.
//
// The production implementation is UUIDv7Generator. Tests substitute
// FixedGenerator for deterministic trace and golden comparison.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens. Because the
// timestamp sits in the high bits, lexical order of tokens is creation
// order, which makes persisted trace listings readable as-is.
//
// The generator is stateless; copies are interchangeable.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7 string. Generation only fails
// when the system's randomness source does, which is not a recoverable
// situation, so failure panics.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns a predetermined token sequence, for tests that
// assert exact trace output.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
// Example:
//
//	gen := NewFixedGenerator("tok-1", "tok-2", "tok-3")
//	gen.Generate() // "tok-1"
//	gen.Generate() // "tok-2"
//	gen.Generate() // "tok-3"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token, panicking once the list is
// exhausted: a test that consumes more tokens than it planned for has a
// wrong expectation about how many cycles ran, and should fail loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// PrefixGenerator returns "<prefix>-1", "<prefix>-2", ... without ever
// exhausting. Useful for tests that do not care about exact token values
// but still want deterministic output.
type PrefixGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewPrefixGenerator creates a PrefixGenerator with the given prefix.
func NewPrefixGenerator(prefix string) *PrefixGenerator {
	return &PrefixGenerator{prefix: prefix}
}

// Generate returns the next sequential token.
func (g *PrefixGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}
