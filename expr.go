// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"strconv"
	"strings"
)

// Operator is the application of an operator to one, two or three operands.
//
// Unary operators: "+", "~", "-", "b" (bool), "r|", "r&", "r^" (reductions),
// "u" (as unsigned), "s" (as signed). Binary operators: "+", "-", "*", "//",
// "%", "<", "<=", "==", "!=", ">", ">=", "&", "|", "^", "<<", ">>". Ternary:
// "m" (mux).
//
type Operator struct {
	valueBase
	Op       string
	Operands []Value
	shape    Shape
}

// NewOperator returns a new operator node. Operands are converted with Cast.
// It panics if the operator is unknown or if the operand shapes are invalid
// for the operator.
//
func NewOperator(op string, operands ...interface{}) *Operator {
	return newOperator(op, callerLoc(), operands...)
}

func newOperator(op string, loc SrcLoc, operands ...interface{}) *Operator {
	o := &Operator{valueBase: valueBase{loc}, Op: op, Operands: make([]Value, len(operands))}
	for i, v := range operands {
		o.Operands[i] = Cast(v)
	}
	s, err := operatorShape(op, o.Operands)
	if err != nil {
		panic(err)
	}
	o.shape = s
	return o
}

func bitwiseBinaryShape(a, b Shape) Shape {
	switch {
	case !a.Signed && !b.Signed:
		return Shape{max(a.Width, b.Width), false}
	case a.Signed && b.Signed:
		return Shape{max(a.Width, b.Width), true}
	case !a.Signed && b.Signed:
		return Shape{max(a.Width+1, b.Width), true}
	default:
		return Shape{max(a.Width, b.Width+1), true}
	}
}

func operatorShape(op string, operands []Value) (Shape, error) {
	switch len(operands) {
	case 1:
		a := operands[0].Shape()
		switch op {
		case "+", "~":
			return a, nil
		case "-":
			return Shape{a.Width + 1, true}, nil
		case "b", "r|", "r&", "r^":
			return Shape{1, false}, nil
		case "u":
			return Shape{a.Width, false}, nil
		case "s":
			if a.Width == 0 {
				return Shape{}, Errorf(ValueError, "Cannot create a 0-width signed value")
			}
			return Shape{a.Width, true}, nil
		}
	case 2:
		a, b := operands[0].Shape(), operands[1].Shape()
		switch op {
		case "+":
			o := bitwiseBinaryShape(a, b)
			return Shape{o.Width + 1, o.Signed}, nil
		case "-":
			o := bitwiseBinaryShape(a, b)
			return Shape{o.Width + 1, true}, nil
		case "*":
			return Shape{a.Width + b.Width, a.Signed || b.Signed}, nil
		case "//":
			w := a.Width
			if b.Signed {
				w++
			}
			return Shape{w, a.Signed || b.Signed}, nil
		case "%":
			return b, nil
		case "<", "<=", "==", "!=", ">", ">=":
			return Shape{1, false}, nil
		case "&", "^", "|":
			return bitwiseBinaryShape(a, b), nil
		case "<<":
			if b.Signed {
				return Shape{}, Errorf(TypeError, "Shift amount must be unsigned")
			}
			if b.Width >= 31 {
				return Shape{}, Errorf(OverflowError, "Shift amount of width %d is too wide", b.Width)
			}
			return Shape{a.Width + 1<<uint(b.Width) - 1, a.Signed}, nil
		case ">>":
			if b.Signed {
				return Shape{}, Errorf(TypeError, "Shift amount must be unsigned")
			}
			return a, nil
		}
	case 3:
		if op == "m" {
			return bitwiseBinaryShape(operands[1].Shape(), operands[2].Shape()), nil
		}
	}
	return Shape{}, Errorf(TypeError, "Operator %s/%d not implemented", op, len(operands))
}

// Shape implements Value.
//
func (o *Operator) Shape() Shape { return o.shape }

func (o *Operator) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(o.Op)
	for _, v := range o.Operands {
		b.WriteByte(' ')
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Slice is a constant range of bits [Start, Stop) of a value.
//
type Slice struct {
	valueBase
	Value       Value
	Start, Stop int
}

// NewSlice returns a slice of v. Negative bounds count from the end of v.
// It panics if the bounds are out of range or if start > stop.
//
func NewSlice(v interface{}, start, stop int) *Slice {
	return newSlice(Cast(v), start, stop, callerLoc())
}

func newSlice(v Value, start, stop int, loc SrcLoc) *Slice {
	n := Len(v)
	if start < -n || start > n {
		raise(IndexError, "Cannot start slice %d bits into %d-bit value", start, n)
	}
	if start < 0 {
		start += n
	}
	if stop < -n || stop > n {
		raise(IndexError, "Cannot stop slice %d bits into %d-bit value", stop, n)
	}
	if stop < 0 {
		stop += n
	}
	if start > stop {
		raise(IndexError, "Slice start %d must be less than slice stop %d", start, stop)
	}
	return &Slice{valueBase{loc}, v, start, stop}
}

// Shape implements Value.
//
func (s *Slice) Shape() Shape { return Shape{s.Stop - s.Start, false} }

func (s *Slice) String() string {
	return "(slice " + s.Value.String() + " " + strconv.Itoa(s.Start) + ":" + strconv.Itoa(s.Stop) + ")"
}

// Part is a variable-offset selection of Width bits, starting at bit
// Offset*Stride.
//
type Part struct {
	valueBase
	Value  Value
	Offset Value
	Width  int
	Stride int
}

func newPart(v, offset Value, width, stride int, loc SrcLoc) *Part {
	if width < 0 {
		raise(TypeError, "Part width must be a non-negative integer, not %d", width)
	}
	if stride <= 0 {
		raise(TypeError, "Part stride must be a positive integer, not %d", stride)
	}
	if offset.Shape().Signed {
		raise(TypeError, "Part offset must be unsigned")
	}
	return &Part{valueBase{loc}, v, offset, width, stride}
}

// Shape implements Value.
//
func (p *Part) Shape() Shape { return Shape{p.Width, false} }

func (p *Part) String() string {
	return "(part " + p.Value.String() + " " + p.Offset.String() + " " + strconv.Itoa(p.Width) + " " + strconv.Itoa(p.Stride) + ")"
}

// Cat is the concatenation of its parts, least significant part first.
//
type Cat struct {
	valueBase
	Parts []Value
}

// Concat returns the concatenation of parts, least significant first. Bare
// integers other than 0 and 1 trigger a warning since their width is
// implied.
//
func Concat(parts ...interface{}) *Cat {
	return newCat(callerLoc(), parts...)
}

func newCat(loc SrcLoc, parts ...interface{}) *Cat {
	c := &Cat{valueBase{loc}, make([]Value, 0, len(parts))}
	for i, p := range parts {
		if vs, ok := p.([]Value); ok {
			c.Parts = append(c.Parts, vs...)
			continue
		}
		if n, ok := toInt64(p); ok && n != 0 && n != 1 {
			warnf(syntaxWarning, loc, "Argument #%d of Cat() is a bare integer %d used in bit vector context; consider specifying the width explicitly using Const(%d, %d) instead", i+1, n, n, bitsFor(n, false))
		}
		c.Parts = append(c.Parts, Cast(p))
	}
	return c
}

// Shape implements Value.
//
func (c *Cat) Shape() Shape {
	w := 0
	for _, p := range c.Parts {
		w += Len(p)
	}
	return Shape{w, false}
}

func (c *Cat) String() string {
	var b strings.Builder
	b.WriteString("(cat")
	for _, v := range c.Parts {
		b.WriteByte(' ')
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}

// ArrayProxy selects one of several values with a variable index. Out of
// range indices select the last element.
//
type ArrayProxy struct {
	valueBase
	Elems []Value
	Index Value
}

// Shape implements Value.
//
func (p *ArrayProxy) Shape() Shape {
	uw, sw := 0, 0
	for _, e := range p.Elems {
		s := e.Shape()
		if s.Signed {
			sw = max(sw, s.Width)
		} else {
			uw = max(uw, s.Width)
		}
	}
	if sw > 0 && uw >= sw {
		return Shape{uw + 1, true}
	}
	return Shape{max(uw, sw), sw > 0}
}

func (p *ArrayProxy) String() string {
	var b strings.Builder
	b.WriteString("(proxy (array [")
	for i, v := range p.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteString("]) ")
	b.WriteString(p.Index.String())
	b.WriteByte(')')
	return b.String()
}

// Sample is the value of Expr as it was Clocks cycles ago in Domain.
//
type Sample struct {
	valueBase
	Expr   Value
	Clocks int
	// Domain is empty until a domain is assigned by SampleDomainInjector.
	Domain string
}

// NewSample returns the value of expr as of clocks cycles ago in domain. An
// empty domain is resolved at elaboration time.
//
func NewSample(expr interface{}, clocks int, domain string) *Sample {
	return newSample(Cast(expr), clocks, domain, callerLoc())
}

func newSample(expr Value, clocks int, domain string, loc SrcLoc) *Sample {
	switch expr.(type) {
	case *Const, *Signal, *ClockSignal, *ResetSignal, *Initial:
	default:
		raise(TypeError, "Sampled value must be a signal or a constant, not %v", expr)
	}
	if clocks < 0 {
		raise(ValueError, "Cannot sample a value %d cycles in the future", -clocks)
	}
	return &Sample{valueBase{loc}, expr, clocks, domain}
}

// Shape implements Value.
//
func (s *Sample) Shape() Shape { return s.Expr.Shape() }

func (s *Sample) String() string {
	d := s.Domain
	if d == "" {
		d = "<default>"
	}
	return "(sample " + s.Expr.String() + " @ " + d + "[" + strconv.Itoa(s.Clocks) + "])"
}

// Past returns the value of expr clocks cycles ago.
//
func Past(expr interface{}, clocks int, domain string) *Sample {
	return newSample(Cast(expr), clocks, domain, callerLoc())
}

// Stable returns 1 if expr did not change between the last clocks+1
// cycles.
//
func Stable(expr interface{}, clocks int, domain string) Value {
	loc := callerLoc()
	v := Cast(expr)
	return newOperator("==", loc, newSample(v, clocks+1, domain, loc), newSample(v, clocks, domain, loc))
}

// Rose returns 1 if the least significant bit of expr rose clocks cycles
// ago.
//
func Rose(expr interface{}, clocks int, domain string) Value {
	loc := callerLoc()
	v := Cast(expr)
	prev := newOperator("~", loc, newSample(v, clocks+1, domain, loc))
	return newOperator("&", loc, newSlice(prev, 0, 1, loc), newSlice(newSample(v, clocks, domain, loc), 0, 1, loc))
}

// Fell returns 1 if the least significant bit of expr fell clocks cycles
// ago.
//
func Fell(expr interface{}, clocks int, domain string) Value {
	loc := callerLoc()
	v := Cast(expr)
	cur := newOperator("~", loc, newSample(v, clocks, domain, loc))
	return newOperator("&", loc, newSlice(newSample(v, clocks+1, domain, loc), 0, 1, loc), newSlice(cur, 0, 1, loc))
}
