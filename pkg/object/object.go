// Package object implements the heap of variable-sized objects the VM
// allocates: today, only interned strings. Objects live in a single
// arena owned by the VM; a Value's Ref is an index into that arena
// rather than a pointer, so bulk teardown at VM shutdown is just
// dropping the arena slice instead of walking a linked free-list.
package object

import (
	"github.com/rs/zerolog"

	"github.com/lumen-lang/lumen/pkg/value"
)

// Kind tags the variant of an arena entry. The core only ever allocates
// String objects; Kind exists so that a future object type doesn't
// require restructuring the arena.
type Kind uint8

const (
	KindString Kind = iota
)

type stringObj struct {
	bytes []byte
	hash  uint32
}

type entry struct {
	kind Kind
	str  stringObj
}

// Pool is the VM's object arena and intrusive free-list replacement: new
// objects are appended (the "push to head" allocation the spec
// describes), and FreeAll reclaims everything at once, matching
// freeObjects walking the C reference's linked list.
type Pool struct {
	entries []entry
	logger  zerolog.Logger
}

// NewPool returns an empty object pool. The logger defaults to a
// disabled sink; use WithLogger to attach diagnostics.
func NewPool() *Pool {
	return &Pool{logger: zerolog.Nop()}
}

// WithLogger attaches a logger used for allocation/teardown diagnostics.
func (p *Pool) WithLogger(logger zerolog.Logger) *Pool {
	p.logger = logger
	return p
}

// AllocateString adds a new string object to the arena and returns a
// reference to it. Callers are responsible for interning (see
// pkg/table's Intern/TakeString) — AllocateString itself always creates
// a fresh entry.
func (p *Pool) AllocateString(bytes []byte, hash uint32) value.Ref {
	p.entries = append(p.entries, entry{kind: KindString, str: stringObj{bytes: bytes, hash: hash}})
	ref := value.Ref(len(p.entries) - 1)
	p.logger.Debug().Uint32("ref", uint32(ref)).Int("len", len(bytes)).Msg("object: allocated string")
	return ref
}

// StringBytes returns the backing bytes of the string object at ref.
// Panics if ref does not reference a string object; callers only ever
// reach this through Value.IsObj() values known to hold strings.
func (p *Pool) StringBytes(ref value.Ref) []byte {
	return p.entries[ref].str.bytes
}

// StringHash returns the precomputed FNV-1a hash of the string object at
// ref, used directly by the hash table instead of rehashing on every
// lookup.
func (p *Pool) StringHash(ref value.Ref) uint32 {
	return p.entries[ref].str.hash
}

// Kind reports the object kind at ref.
func (p *Pool) Kind(ref value.Ref) Kind {
	return p.entries[ref].kind
}

// Display renders the object at ref using the language's display rules:
// strings print as their raw bytes, with no surrounding quotes.
func (p *Pool) Display(ref value.Ref) string {
	switch p.entries[ref].kind {
	case KindString:
		return string(p.entries[ref].str.bytes)
	default:
		return "<object>"
	}
}

// Count returns the number of live objects. Used by the "no leaks after
// freeVM" property test: it must be zero after FreeAll.
func (p *Pool) Count() int {
	return len(p.entries)
}

// FreeAll bulk-releases every object in the pool, the Go analogue of
// walking the C reference's free-list and calling free() on each node —
// here it's simply dropping the arena so the garbage collector can
// reclaim the backing arrays.
func (p *Pool) FreeAll() {
	p.logger.Debug().Int("count", len(p.entries)).Msg("object: freeing pool")
	p.entries = nil
}
