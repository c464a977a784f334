// Package value implements the tagged Value type shared by the compiler
// and the VM: nil, booleans, numbers (float and optional int), and weak
// references into the object pool.
package value

import (
	"fmt"
	"strconv"
)

// Ref is a weak reference into the object pool. It is the memory-safe
// stand-in for the reference-counted Obj* pointer in the C reference: an
// arena index rather than an address. The zero Ref is only meaningful for
// a Value whose Type is TypeObj; it carries no meaning on its own.
type Ref uint32

// Type tags the variant held by a Value.
type Type uint8

const (
	TypeNil Type = iota
	TypeBool
	TypeFloat
	TypeInt
	TypeObj
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeObj:
		return "obj"
	default:
		return "unknown"
	}
}

// Value is a small tagged union. It is deliberately a plain struct rather
// than an interface or NaN-boxed float: the C reference's union trick
// buys compactness we don't need, and an interface would force every
// number onto the heap.
type Value struct {
	typ Type
	b   bool
	f   float64
	i   int64
	ref Ref
}

// Nil returns the nil value.
func Nil() Value { return Value{typ: TypeNil} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Float returns a float value.
func Float(f float64) Value { return Value{typ: TypeFloat, f: f} }

// Int returns an int value. Only meaningful when the int feature is
// enabled; see internal/config.
func Int(i int64) Value { return Value{typ: TypeInt, i: i} }

// Obj returns a value referencing an object pool entry.
func Obj(r Ref) Value { return Value{typ: TypeObj, ref: r} }

// Type reports which variant is held.
func (v Value) Type() Type { return v.typ }

func (v Value) IsNil() bool    { return v.typ == TypeNil }
func (v Value) IsBool() bool   { return v.typ == TypeBool }
func (v Value) IsFloat() bool  { return v.typ == TypeFloat }
func (v Value) IsInt() bool    { return v.typ == TypeInt }
func (v Value) IsNumber() bool { return v.typ == TypeFloat || v.typ == TypeInt }
func (v Value) IsObj() bool    { return v.typ == TypeObj }

// AsBool returns the stored bool without checking the tag, mirroring the
// unchecked AS_BOOL macro in the C reference; for a non-bool value it
// returns false, so callers check IsBool first.
func (v Value) AsBool() bool { return v.b }

// AsFloat returns the underlying float64. It does not itself perform
// int-to-float promotion; use Number for that.
func (v Value) AsFloat() float64 { return v.f }

// AsInt returns the underlying int64.
func (v Value) AsInt() int64 { return v.i }

// AsRef returns the underlying object reference.
func (v Value) AsRef() Ref { return v.ref }

// Number returns the value as a float64, promoting Int to Float. It does
// not check the tag: for a non-number value it returns 0.
func (v Value) Number() float64 {
	if v.typ == TypeInt {
		return float64(v.i)
	}
	return v.f
}

// Truthy implements the language's truthiness rule: nil and false are
// falsy, everything else (including 0, 0.0, and "") is truthy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNil:
		return false
	case TypeBool:
		return v.b
	default:
		return true
	}
}

// Equal implements structural equality. Cross-variant equality is false
// except for Int/Float, which compare as IEEE-754 doubles after
// promotion. Object equality is reference equality: safe because every
// string is interned, so equal content always shares a Ref.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		if a.IsNumber() && b.IsNumber() {
			return a.Number() == b.Number()
		}
		return false
	}

	switch a.typ {
	case TypeNil:
		return true
	case TypeBool:
		return a.b == b.b
	case TypeFloat:
		return a.f == b.f
	case TypeInt:
		return a.i == b.i
	case TypeObj:
		return a.ref == b.ref
	default:
		return false
	}
}

// String renders a Value for non-object variants using the display rules
// from the language spec: shortest round-trip float notation, signed
// decimal ints, literal true/false, and "nil". Object values cannot be
// displayed without the pool that owns their backing bytes; callers
// needing to print a possibly-object Value must go through the object
// pool's Display method instead. This method still returns a
// best-effort placeholder for TypeObj so that fmt.Stringer use in
// non-printing contexts (debugger output, error messages) doesn't panic.
func (v Value) String() string {
	switch v.typ {
	case TypeNil:
		return "nil"
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeObj:
		return fmt.Sprintf("<obj #%d>", v.ref)
	default:
		return "<invalid value>"
	}
}
