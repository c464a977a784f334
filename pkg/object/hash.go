package object

import (
	"encoding/binary"
	"math"

	"github.com/lumen-lang/lumen/pkg/value"
)

// fnv1a is the 32-bit FNV-1a hash used throughout: for string bytes, for
// the little-endian encoding of ints, and for bools/nil via small
// sentinel byte sequences. It matches the reference's hashString exactly
// (offset basis 2166136261, prime 16777619).
func fnv1a(bytes []byte) uint32 {
	hash := uint32(2166136261)
	for _, c := range bytes {
		hash ^= uint32(c)
		hash *= 16777619
	}
	return hash
}

func hashInt64(i int64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	return fnv1a(buf[:])
}

// Fixed, distinct sentinel hashes for nil/false/true, derived the same
// way the reference derives them (FNV-1a chained over small integers),
// just without swapping true and false — see DESIGN.md for why the
// reference's apparent true/false swap is not reproduced here.
var (
	hashNilConst   = hashInt64(hashInt64(0) + 1)
	hashFalseConst = hashInt64(hashInt64(1) + 1)
	hashTrueConst  = hashInt64(hashInt64(2) + 1)
)

// Hash computes the hash table bucket hash for v. Object values look up
// their precomputed string hash in the pool rather than rehashing; any
// future non-string object kind falls back to hashing its arena index,
// the Go analogue of the reference's "hash the object's address" case.
func (p *Pool) Hash(v value.Value) uint32 {
	switch v.Type() {
	case value.TypeNil:
		return hashNilConst
	case value.TypeBool:
		if v.AsBool() {
			return hashTrueConst
		}
		return hashFalseConst
	case value.TypeInt:
		return hashInt64(v.AsInt())
	case value.TypeFloat:
		bits := math.Float64bits(v.AsFloat())
		return hashInt64(int64(bits) ^ int64(hashNilConst+1))
	case value.TypeObj:
		ref := v.AsRef()
		if p.Kind(ref) == KindString {
			return p.StringHash(ref)
		}
		return hashInt64(int64(ref))
	default:
		return 0
	}
}

// HashBytes is exported so the lexer→compiler path and the table's
// interning helpers can hash raw string content before an object even
// exists for it (e.g. to probe the intern table prior to allocating).
func HashBytes(bytes []byte) uint32 {
	return fnv1a(bytes)
}
