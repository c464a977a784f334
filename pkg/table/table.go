// Package table implements the open-addressed hash table used both for
// string interning and for the VM's global-variable storage. It follows
// the reference design exactly: linear probing, tombstone deletion, a
// 0.75 load factor, and a separate "capacity count" (live + tombstones)
// that drives growth so repeated delete/insert churn doesn't corrupt the
// probe sequence.
package table

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/lumen-lang/lumen/pkg/object"
	"github.com/lumen-lang/lumen/pkg/value"
)

const maxLoad = 0.75

type entry struct {
	present bool
	key     value.Value
	val     value.Value
}

// Table is a general-purpose Value-keyed hash table. It needs the object
// pool to hash and compare Obj-variant keys (interned strings), which is
// why every Table is constructed against one.
type Table struct {
	pool     *object.Pool
	entries  []entry
	count    int // live entries
	capCount int // live + tombstones, drives growth
	logger   zerolog.Logger
}

// New returns an empty table bound to pool for key hashing/equality.
func New(pool *object.Pool) *Table {
	return &Table{pool: pool, logger: zerolog.Nop()}
}

// WithLogger attaches a logger used for growth diagnostics.
func (t *Table) WithLogger(logger zerolog.Logger) *Table {
	t.logger = logger
	return t
}

// Len reports the number of live entries.
func (t *Table) Len() int { return t.count }

func (t *Table) equalKeys(a, b value.Value) bool {
	return value.Equal(a, b)
}

// findEntry implements the shared probe sequence used by Get, Set, and
// Delete: walk from hash(key) % capacity, skipping tombstones, until an
// equal key or a truly empty slot (present=false, value=Nil) is found.
func (t *Table) findEntry(entries []entry, key value.Value) *entry {
	capacity := len(entries)
	index := int(t.pool.Hash(key) % uint32(capacity))
	var tombstone *entry

	for {
		e := &entries[index]
		if !e.present {
			if e.val.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if t.equalKeys(e.key, key) {
			return e
		}

		index = (index + 1) % capacity
	}
}

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key value.Value) (value.Value, bool) {
	if t.count == 0 {
		return value.Nil(), false
	}

	e := t.findEntry(t.entries, key)
	if !e.present {
		return value.Nil(), false
	}
	return e.val, true
}

func (t *Table) growCapacity() int {
	if len(t.entries) < 8 {
		return 8
	}
	return len(t.entries) * 2
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i].key = value.Nil()
		entries[i].val = value.Nil()
	}

	t.count = 0
	t.capCount = 0
	for i := range t.entries {
		old := &t.entries[i]
		if !old.present {
			continue
		}
		dest := t.findEntry(entries, old.key)
		dest.present = true
		dest.key = old.key
		dest.val = old.val
		t.count++
		t.capCount++
	}

	t.logger.Debug().Int("from", len(t.entries)).Int("to", capacity).Msg("table: grew")
	t.entries = entries
}

// Set inserts or updates key→val, returning true if key is new to the
// table (as opposed to overwriting an existing live entry). Growth is
// triggered off capCount, not count, so tombstones still count toward
// the load factor that drives a rehash.
func (t *Table) Set(key value.Value, val value.Value) bool {
	if float64(t.capCount+1) > float64(len(t.entries))*maxLoad {
		t.adjustCapacity(t.growCapacity())
	}

	e := t.findEntry(t.entries, key)
	isNew := !e.present
	if isNew {
		t.count++
		if e.val.IsNil() {
			t.capCount++
		}
	}

	e.present = true
	e.key = key
	e.val = val
	return isNew
}

// Delete converts key's slot into a tombstone. Tombstones keep the probe
// chain intact for keys that hashed past this slot, so they are never
// cleared to the "truly empty" sentinel — only Set via adjustCapacity
// drops them.
func (t *Table) Delete(key value.Value) bool {
	if t.count == 0 {
		return false
	}

	e := t.findEntry(t.entries, key)
	if !e.present {
		return false
	}

	t.count--
	e.present = false
	e.key = value.Nil()
	e.val = value.Bool(true)
	return true
}

// AddAll copies every live entry from t into dest. Grounded on the
// reference's tableAddAll, originally used for class-inheritance method
// copying; this core has no inheritance, but the operation is a useful,
// independently testable primitive and is used by vm.VM.Fork to snapshot
// a VM's globals.
func (t *Table) AddAll(dest *Table) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.present {
			dest.Set(e.key, e.val)
		}
	}
}

// FindString probes for an interned string with the given content
// without needing a Value or an existing object — it exists purely so
// interning can check "do we already have this string" before
// allocating one. It bypasses general key equality and compares by
// length, hash, and byte content directly.
func (t *Table) FindString(bytes []byte, hash uint32) (value.Ref, bool) {
	if t.count == 0 {
		return 0, false
	}

	capacity := len(t.entries)
	index := int(hash % uint32(capacity))

	for {
		e := &t.entries[index]
		if !e.present {
			if e.val.IsNil() {
				return 0, false
			}
		} else if e.key.IsObj() {
			ref := e.key.AsRef()
			if t.pool.Kind(ref) == object.KindString &&
				t.pool.StringHash(ref) == hash &&
				string(t.pool.StringBytes(ref)) == string(bytes) {
				return ref, true
			}
		}
		index = (index + 1) % capacity
	}
}

// Intern returns a Value wrapping the unique object for bytes, allocating
// a new string object in pool only if an equal one isn't already
// present. This is what guarantees the "equal strings share a Ref"
// invariant that makes Obj equality a safe reference comparison.
func (t *Table) Intern(pool *object.Pool, bytes []byte) value.Value {
	hash := object.HashBytes(bytes)
	if ref, ok := t.FindString(bytes, hash); ok {
		return value.Obj(ref)
	}
	ref := pool.AllocateString(bytes, hash)
	t.Set(value.Obj(ref), value.Nil())
	return value.Obj(ref)
}

// TakeString is Intern's counterpart for freshly-built buffers (e.g. the
// result of string concatenation) that the caller no longer needs if an
// equal string is already interned. The C reference frees the raw
// buffer in that case; in Go there is nothing to free explicitly — the
// unused slice simply becomes unreachable and the garbage collector
// reclaims it, which is the point of this method still existing as a
// distinct name from Intern: it documents that intent at the call site.
func (t *Table) TakeString(pool *object.Pool, bytes []byte) value.Value {
	return t.Intern(pool, bytes)
}

// String renders the table's live entries for introspection. Nothing in
// the VM, its trace output, or the driver calls it. Grounded on the
// reference's tablePrint.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString("{")
	first := true
	for i := range t.entries {
		e := &t.entries[i]
		if !e.present {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(t.displayKey(e.key))
		b.WriteString(": ")
		b.WriteString(t.displayKey(e.val))
	}
	b.WriteString("}")
	return b.String()
}

func (t *Table) displayKey(v value.Value) string {
	if v.IsObj() {
		return t.pool.Display(v.AsRef())
	}
	return v.String()
}
