// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"math/bits"
	"reflect"
)

// Shape describes the bit width and signedness of a value.
//
type Shape struct {
	Width  int
	Signed bool
}

// Unsigned returns an unsigned shape of the given width.
//
func Unsigned(width int) Shape {
	s, err := NewShape(width, false)
	if err != nil {
		panic(err)
	}
	return s
}

// Signed returns a signed shape of the given width.
//
func Signed(width int) Shape {
	s, err := NewShape(width, true)
	if err != nil {
		panic(err)
	}
	return s
}

// NewShape returns a new shape after checking the width.
//
func NewShape(width int, signed bool) (Shape, error) {
	if !signed && width < 0 {
		return Shape{}, Errorf(ValueError, "Width of an unsigned value must be zero or a positive integer, not %d", width)
	}
	if signed && width <= 0 {
		return Shape{}, Errorf(ValueError, "Width of a signed value must be a positive integer, not %d", width)
	}
	return Shape{width, signed}, nil
}

func (s Shape) String() string {
	if s.Signed {
		return fmt.Sprintf("signed(%d)", s.Width)
	}
	return fmt.Sprintf("unsigned(%d)", s.Width)
}

// Range is a half-open integer range [Start, Stop) usable as a shape.
//
type Range struct {
	Start, Stop int64
}

// Len returns the number of integers in the range.
//
func (r Range) Len() int64 {
	if r.Stop <= r.Start {
		return 0
	}
	return r.Stop - r.Start
}

// Contains returns true if v is within r.
//
func (r Range) Contains(v int64) bool {
	return v >= r.Start && v < r.Stop
}

func (r Range) String() string {
	return fmt.Sprintf("range(%d, %d)", r.Start, r.Stop)
}

// Enum is an enumerated set of values usable as a shape.
//
type Enum interface {
	Members() []int64
}

// EnumValue is a member of an enumeration. It can be used as a constant
// value and as a switch key.
//
type EnumValue interface {
	Enum() Enum
	Value() int64
}

// EnumNamer is optionally implemented by Enum types to provide member names
// used when formatting signal values.
//
type EnumNamer interface {
	Name(v int64) (string, bool)
}

// ShapeCastable is implemented by types that can be converted to a shape.
// AsShape may return any value accepted by ShapeCast.
//
type ShapeCastable interface {
	AsShape() interface{}
}

// ShapeCast converts obj to a Shape. Accepted types are Shape, int, Range,
// Enum and ShapeCastable.
//
func ShapeCast(obj interface{}) (Shape, error) {
	for {
		var next interface{}
		switch o := obj.(type) {
		case Shape:
			return o, nil
		case int:
			return NewShape(o, false)
		case Range:
			return rangeShape(o), nil
		case Enum:
			return enumShape(o), nil
		case ShapeCastable:
			next = o.AsShape()
			if sameObject(next, obj) {
				return Shape{}, Errorf(RecursionError, "Shape-castable object %v casts to itself", obj)
			}
		default:
			return Shape{}, Errorf(TypeError, "Object %v cannot be converted to a shape", obj)
		}
		obj = next
	}
}

func mustShape(obj interface{}) Shape {
	s, err := ShapeCast(obj)
	if err != nil {
		panic(err)
	}
	return s
}

func rangeShape(r Range) Shape {
	if r.Len() == 0 {
		return Shape{}
	}
	first, last := r.Start, r.Stop-1
	signed := first < 0 || last < 0
	w := bitsFor(first, signed)
	if lw := bitsFor(last, signed); lw > w {
		w = lw
	}
	if first == 0 && last == 0 {
		w = 0
	}
	return Shape{w, signed}
}

func enumShape(e Enum) Shape {
	signed, width := false, 0
	for _, m := range e.Members() {
		ms := constShape(m)
		switch {
		case !signed && ms.Signed:
			signed = true
			width = max(width+1, ms.Width)
		case signed && !ms.Signed:
			width = max(width, ms.Width+1)
		default:
			width = max(width, ms.Width)
		}
	}
	return Shape{width, signed}
}

// constShape returns the minimal shape for a constant value.
func constShape(v int64) Shape {
	return Shape{bitsFor(v, false), v < 0}
}

// bitsFor returns the number of bits required to represent v.
//
func bitsFor(v int64, requireSign bool) int {
	var r int
	if v > 0 {
		r = bits.Len64(uint64(v))
	} else if v < 0 {
		requireSign = true
		r = bits.Len64(uint64(-(v + 1)))
	} else {
		requireSign = true
	}
	if requireSign {
		r++
	}
	return r
}

// sameObject returns true if a and b are the same object. Values of
// non-comparable types are never considered the same.
func sameObject(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
