// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/db47h/rtl/internal/diag"
)

// The operator functions below accept anything accepted by Cast and panic
// with an *Error when given invalid operands.

// Not returns the bitwise inversion of v.
func Not(v interface{}) Value { return newOperator("~", callerLoc(), v) }

// Neg returns the negation of v.
func Neg(v interface{}) Value { return newOperator("-", callerLoc(), v) }

// Bool returns 1 if any bit of v is set.
func Bool(v interface{}) Value { return newOperator("b", callerLoc(), v) }

// Any returns 1 if any bit of v is set.
func Any(v interface{}) Value { return newOperator("r|", callerLoc(), v) }

// All returns 1 if all bits of v are set.
func All(v interface{}) Value { return newOperator("r&", callerLoc(), v) }

// Parity returns 1 if an odd number of bits of v are set.
func Parity(v interface{}) Value { return newOperator("r^", callerLoc(), v) }

// AsUnsigned reinterprets v as an unsigned value.
func AsUnsigned(v interface{}) Value { return newOperator("u", callerLoc(), v) }

// AsSigned reinterprets v as a signed value.
func AsSigned(v interface{}) Value { return newOperator("s", callerLoc(), v) }

func Add(a, b interface{}) Value      { return newOperator("+", callerLoc(), a, b) }
func Sub(a, b interface{}) Value      { return newOperator("-", callerLoc(), a, b) }
func Mul(a, b interface{}) Value      { return newOperator("*", callerLoc(), a, b) }
func FloorDiv(a, b interface{}) Value { return newOperator("//", callerLoc(), a, b) }
func Mod(a, b interface{}) Value      { return newOperator("%", callerLoc(), a, b) }
func And(a, b interface{}) Value      { return newOperator("&", callerLoc(), a, b) }
func Or(a, b interface{}) Value       { return newOperator("|", callerLoc(), a, b) }
func Xor(a, b interface{}) Value      { return newOperator("^", callerLoc(), a, b) }
func Eq(a, b interface{}) Value       { return newOperator("==", callerLoc(), a, b) }
func Ne(a, b interface{}) Value       { return newOperator("!=", callerLoc(), a, b) }
func Lt(a, b interface{}) Value       { return newOperator("<", callerLoc(), a, b) }
func Le(a, b interface{}) Value       { return newOperator("<=", callerLoc(), a, b) }
func Gt(a, b interface{}) Value       { return newOperator(">", callerLoc(), a, b) }
func Ge(a, b interface{}) Value       { return newOperator(">=", callerLoc(), a, b) }

// Shl shifts a left by the unsigned value amount.
//
func Shl(a, amount interface{}) Value { return newOperator("<<", callerLoc(), a, amount) }

// Shr shifts a right by the unsigned value amount. The shift is arithmetic
// if a is signed.
//
func Shr(a, amount interface{}) Value { return newOperator(">>", callerLoc(), a, amount) }

// Mux returns val1 if sel is non-zero, val0 otherwise.
//
func Mux(sel, val1, val0 interface{}) Value {
	loc := callerLoc()
	s := Cast(sel)
	if Len(s) != 1 {
		s = newOperator("b", loc, s)
	}
	return newOperator("m", loc, s, val1, val0)
}

// Implies returns 0 if premise is true and conclusion is not, 1 otherwise.
//
func Implies(premise, conclusion interface{}) Value {
	loc := callerLoc()
	return newOperator("|", loc, newOperator("~", loc, premise), conclusion)
}

// Bit returns bit i of v. Negative indices count from the most significant
// bit.
//
func Bit(v interface{}, i int) *Slice {
	x := Cast(v)
	n := Len(x)
	if i < -n || i >= n {
		raise(IndexError, "Index %d is out of bounds for a %d-bit value", i, n)
	}
	if i < 0 {
		i += n
	}
	return &Slice{valueBase{callerLoc()}, x, i, i + 1}
}

// Slc returns bits [start, stop) of v. Negative bounds count from the end
// of v, and bounds are clamped like Go slice expressions would be if they
// were allowed to exceed the value.
//
func Slc(v interface{}, start, stop int) *Slice {
	x := Cast(v)
	start, stop, _ = sliceIndices(Len(x), start, stop, 1)
	return newSlice(x, start, stop, callerLoc())
}

// SlcStep returns every step-th bit of v in [start, stop). A step of 1 is
// equivalent to Slc.
//
func SlcStep(v interface{}, start, stop, step int) Value {
	if step == 0 {
		raise(ValueError, "slice step cannot be zero")
	}
	loc := callerLoc()
	x := Cast(v)
	start, stop, step = sliceIndices(Len(x), start, stop, step)
	if step == 1 {
		return newSlice(x, start, stop, loc)
	}
	var parts []interface{}
	if step > 0 {
		for i := start; i < stop; i += step {
			parts = append(parts, newSlice(x, i, i+1, loc))
		}
	} else {
		for i := start; i > stop; i += step {
			parts = append(parts, newSlice(x, i, i+1, loc))
		}
	}
	return newCat(loc, parts...)
}

// sliceIndices resolves slice bounds against a length n the way slice.indices
// does in languages with negative indexing.
func sliceIndices(n, start, stop, step int) (int, int, int) {
	clamp := func(i, lo, hi int) int {
		if i < 0 {
			i += n
			if i < lo {
				i = lo
			}
		} else if i > hi {
			i = hi
		}
		return i
	}
	if step > 0 {
		return clamp(start, 0, n), clamp(stop, 0, n), step
	}
	return clamp(start, -1, n-1), clamp(stop, -1, n-1), step
}

// Index always panics with a SyntaxError: indexing with a Value must be
// done with BitSelect or WordSelect. For integer indices, use Bit.
//
func Index(v interface{}, idx interface{}) Value {
	if i, ok := toInt64(idx); ok {
		return Bit(v, int(i))
	}
	if _, ok := idx.(Value); ok {
		raise(SyntaxError, "Indexing a value with another value is not supported, use BitSelect() instead.")
	}
	raise(TypeError, "Cannot index value with %v", idx)
	return nil
}

// BitSelect returns width bits of v starting at bit offset. Consecutive
// offsets select overlapping parts. A constant offset yields a Slice.
//
func BitSelect(v interface{}, offset interface{}, width int) Value {
	loc := callerLoc()
	x, off := Cast(v), Cast(offset)
	if c, ok := off.(*Const); ok {
		start, stop, _ := sliceIndices(Len(x), int(c.Value), int(c.Value)+width, 1)
		return newSlice(x, start, stop, loc)
	}
	return newPart(x, off, width, 1, loc)
}

// WordSelect returns the offset-th word of width bits of v. A constant
// offset yields a Slice.
//
func WordSelect(v interface{}, offset interface{}, width int) Value {
	loc := callerLoc()
	x, off := Cast(v), Cast(offset)
	if c, ok := off.(*Const); ok {
		start, stop, _ := sliceIndices(Len(x), int(c.Value)*width, int(c.Value+1)*width, 1)
		return newSlice(x, start, stop, loc)
	}
	return newPart(x, off, width, width, loc)
}

// Matches returns 1 if v matches any of the patterns. A pattern is either a
// string of '0', '1' and '-' (don't care) bits, possibly with whitespace, of
// the same width as v, or a const-castable value.
//
func Matches(v interface{}, patterns ...interface{}) Value {
	loc := callerLoc()
	x := Cast(v)
	var tests []interface{}
	for _, p := range patterns {
		if s, ok := p.(string); ok {
			s, err := checkPattern(s, Len(x), "Match")
			if err != nil {
				panic(err)
			}
			mask, value := patternMask(s)
			tests = append(tests, newOperator("==", loc, newOperator("&", loc, x, newConst(int64(mask), constShapeU(mask), loc)), newConst(int64(value), constShapeU(value), loc)))
			continue
		}
		c, err := ConstCast(p)
		if err != nil {
			raise(SyntaxError, "Match pattern must be a string or a const-castable expression, not %v", p)
		}
		if pl := patternBits(c.Value); pl > Len(x) {
			diag.Warnf(diag.SyntaxWarning, loc.String(),
				"Match pattern '%v' (%d'%b) is wider than match value (which has width %d); comparison will never be true", p, pl, c.Value, Len(x))
			continue
		}
		tests = append(tests, newOperator("==", loc, x, c))
	}
	switch len(tests) {
	case 0:
		diag.Warnf(diag.SyntaxWarning, loc.String(), "Matches() with an empty patterns clause will return Const(0) in a future release.")
		return newConst(1, Unsigned(1), loc)
	case 1:
		return tests[0].(Value)
	}
	return newOperator("r|", loc, newCat(loc, tests...))
}

// patternBits returns the number of bits needed by a constant pattern. Zero
// fits any width.
func patternBits(v int64) int {
	if v == 0 {
		return 0
	}
	return bitsFor(v, false)
}

func constShapeU(v uint64) Shape {
	return Shape{max(bits.Len64(v), 1), false}
}

// checkPattern validates a bit pattern and returns it without whitespace.
func checkPattern(pattern string, width int, what string) (string, error) {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '0', '1', '-':
			b.WriteRune(r)
		case ' ', '\t':
		default:
			return "", Errorf(SyntaxError, "%s pattern '%s' must consist of 0, 1, and - (don't care) bits, and may include whitespace", what, pattern)
		}
	}
	if b.Len() != width {
		return "", Errorf(SyntaxError, "%s pattern '%s' must have the same width as match value (which is %d)", what, pattern, width)
	}
	return b.String(), nil
}

// patternMask returns the care mask and expected value of a clean pattern.
func patternMask(p string) (mask, value uint64) {
	for _, r := range p {
		mask <<= 1
		value <<= 1
		switch r {
		case '0':
			mask |= 1
		case '1':
			mask |= 1
			value |= 1
		}
	}
	return mask, value
}

// ShiftLeft shifts v left by a constant amount. A negative amount shifts
// right.
//
func ShiftLeft(v interface{}, amount int) Value {
	loc := callerLoc()
	x := Cast(v)
	if amount < 0 {
		return shiftRight(x, -amount, loc)
	}
	return shiftLeft(x, amount, loc)
}

func shiftLeft(x Value, amount int, loc SrcLoc) Value {
	c := newCat(loc, newConst(0, Shape{amount, false}, loc), x)
	if x.Shape().Signed {
		return newOperator("s", loc, c)
	}
	return c
}

// ShiftRight shifts v right by a constant amount. Signed values are shifted
// arithmetically. A negative amount shifts left.
//
func ShiftRight(v interface{}, amount int) Value {
	loc := callerLoc()
	x := Cast(v)
	if amount < 0 {
		return shiftLeft(x, -amount, loc)
	}
	return shiftRight(x, amount, loc)
}

func shiftRight(x Value, amount int, loc SrcLoc) Value {
	n := Len(x)
	if x.Shape().Signed {
		if amount >= n {
			amount = n - 1
		}
		return newOperator("s", loc, newSlice(x, amount, n, loc))
	}
	if amount > n {
		amount = n
	}
	return newSlice(x, amount, n, loc)
}

// RotateLeft rotates v left by a constant amount. A negative amount rotates
// right.
//
func RotateLeft(v interface{}, amount int) Value {
	loc := callerLoc()
	x := Cast(v)
	n := Len(x)
	if n != 0 {
		amount = ((amount % n) + n) % n
	}
	// x[-amount:], x[:-amount]
	return newCat(loc, newSlice(x, n-amount, n, loc), newSlice(x, 0, n-amount, loc))
}

// RotateRight rotates v right by a constant amount. A negative amount
// rotates left.
//
func RotateRight(v interface{}, amount int) Value {
	loc := callerLoc()
	x := Cast(v)
	n := Len(x)
	if n != 0 {
		amount = ((amount % n) + n) % n
	}
	return newCat(loc, newSlice(x, amount, n, loc), newSlice(x, 0, amount, loc))
}

// Replicate returns the concatenation of count copies of v.
//
func Replicate(v interface{}, count int) Value {
	if count < 0 {
		raise(TypeError, "Replication count must be a non-negative integer, not %d", count)
	}
	loc := callerLoc()
	x := Cast(v)
	parts := make([]interface{}, count)
	for i := range parts {
		parts[i] = x
	}
	return newCat(loc, parts...)
}

// NewArrayProxy returns a value selecting elems[index]. Prefer Array.Index.
//
func NewArrayProxy(elems []Value, index interface{}) *ArrayProxy {
	return &ArrayProxy{valueBase{callerLoc()}, elems, Cast(index)}
}

func formatBits(v uint64, width int) string {
	if width == 0 {
		return ""
	}
	s := strconv.FormatUint(v, 2)
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}
