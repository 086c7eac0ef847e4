// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/db47h/rtl/internal/diag"
)

// SrcLoc is the source location where a value or statement was created.
//
type SrcLoc struct {
	File string
	Line int
}

func (l SrcLoc) String() string {
	if l.File == "" {
		return ""
	}
	return l.File + ":" + strconv.Itoa(l.Line)
}

const pkgPrefix = "github.com/db47h/rtl."

// callerLoc returns the location of the first caller outside of this package.
func callerLoc() SrcLoc {
	var pcs [16]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, pkgPrefix) {
			return SrcLoc{f.File, f.Line}
		}
		if !more {
			return SrcLoc{f.File, f.Line}
		}
	}
}

// Value is a node of an expression tree. The set of implementations is
// closed: *Const, *Signal, *Operator, *Slice, *Part, *Cat, *ArrayProxy,
// *Sample, *ClockSignal, *ResetSignal, *Initial and *AnyValue.
//
type Value interface {
	Shape() Shape
	SrcLoc() SrcLoc
	String() string
	isValue()
}

// ValueCastable is implemented by types that can be converted to a Value.
//
type ValueCastable interface {
	AsValue() Value
}

type valueBase struct {
	loc SrcLoc
}

func (v *valueBase) SrcLoc() SrcLoc { return v.loc }
func (*valueBase) isValue()         {}

// Len returns the width of v.
//
func Len(v Value) int { return v.Shape().Width }

// Cast converts obj to a Value. Accepted types are Value, ValueCastable,
// integers, bool and EnumValue. It panics with a TypeError otherwise.
//
func Cast(obj interface{}) Value {
	v, err := cast(obj)
	if err != nil {
		panic(err)
	}
	return v
}

func cast(obj interface{}) (Value, error) {
	for {
		switch o := obj.(type) {
		case Value:
			return o, nil
		case EnumValue:
			return newConst(o.Value(), enumShape(o.Enum()), callerLoc()), nil
		case ValueCastable:
			next := o.AsValue()
			if sameObject(interface{}(next), obj) {
				return nil, Errorf(RecursionError, "Value-castable object %v casts to itself", obj)
			}
			obj = next
			continue
		case bool:
			if o {
				return newConst(1, Unsigned(1), callerLoc()), nil
			}
			return newConst(0, Unsigned(1), callerLoc()), nil
		}
		if i, ok := toInt64(obj); ok {
			return newConst(i, constShape(i), callerLoc()), nil
		}
		return nil, Errorf(TypeError, "Object %v cannot be converted to a value", obj)
	}
}

func toInt64(obj interface{}) (int64, bool) {
	switch i := obj.(type) {
	case int:
		return int64(i), true
	case int8:
		return int64(i), true
	case int16:
		return int64(i), true
	case int32:
		return int64(i), true
	case int64:
		return i, true
	case uint:
		return int64(i), true
	case uint8:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint32:
		return int64(i), true
	case uint64:
		return int64(i), true
	}
	return 0, false
}

// Const is a constant value.
//
type Const struct {
	valueBase
	// Value is normalized to the constant's shape: masked to Width bits, then
	// sign extended if signed. Unsigned 64-bit constants hold their bit pattern.
	Value  int64
	Width  int
	Signed bool
}

// NewConst returns a new constant. A nil shape selects the smallest shape
// that can hold value; an int shape is the width, signed if value is
// negative. Other shapes are converted with ShapeCast.
//
func NewConst(value int64, shape interface{}) *Const {
	var s Shape
	switch sh := shape.(type) {
	case nil:
		s = constShape(value)
	case int:
		var err error
		if s, err = NewShape(sh, value < 0); err != nil {
			panic(err)
		}
	default:
		if r, ok := sh.(Range); ok && value == r.Stop {
			diag.Warnf(diag.SyntaxWarning, callerLoc().String(),
				"Value %d equals the non-inclusive end of the constant shape %v; this is likely an off-by-one error", value, r)
		}
		s = mustShape(shape)
	}
	return newConst(value, s, callerLoc())
}

// C returns a constant with the smallest shape that can hold v.
//
func C(v int64) *Const {
	return newConst(v, constShape(v), callerLoc())
}

func newConst(v int64, s Shape, loc SrcLoc) *Const {
	if s.Width > 64 && !s.Signed && v < 0 {
		raise(OverflowError, "Constant %d does not fit a %v shape", v, s)
	}
	return &Const{valueBase{loc}, Normalize(v, s), s.Width, s.Signed}
}

// Normalize truncates v to the width of shape s and sign extends the result
// if s is signed.
//
func Normalize(v int64, s Shape) int64 {
	if s.Width >= 64 {
		return v
	}
	if s.Width == 0 {
		return 0
	}
	mask := int64(1)<<uint(s.Width) - 1
	v &= mask
	if s.Signed && v>>uint(s.Width-1)&1 != 0 {
		v |= ^mask
	}
	return v
}

// Shape implements Value.
//
func (c *Const) Shape() Shape { return Shape{c.Width, c.Signed} }

// Uint64 returns the bit pattern of c.
//
func (c *Const) Uint64() uint64 {
	if c.Width >= 64 {
		return uint64(c.Value)
	}
	return uint64(c.Value) & (1<<uint(c.Width) - 1)
}

func (c *Const) String() string {
	s := ""
	if c.Signed {
		s = "s"
	}
	return fmt.Sprintf("(const %d'%sd%d)", c.Width, s, c.Value)
}

// ConstCast evaluates obj as a constant. obj may be anything accepted by
// Cast that reduces to a Const, or a Cat or Slice of constants.
//
func ConstCast(obj interface{}) (*Const, error) {
	v, err := cast(obj)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *Const:
		return v, nil
	case *Cat:
		var value uint64
		width := 0
		for _, p := range v.Parts {
			c, err := ConstCast(p)
			if err != nil {
				return nil, err
			}
			if width+c.Width > 64 {
				return nil, Errorf(OverflowError, "Constant %v is wider than 64 bits", v)
			}
			value |= c.Uint64() << uint(width)
			width += c.Width
		}
		return newConst(int64(value), Shape{width, false}, v.loc), nil
	case *Slice:
		c, err := ConstCast(v.Value)
		if err != nil {
			return nil, err
		}
		return newConst(c.Value>>uint(min(v.Start, 63)), Shape{v.Stop - v.Start, false}, v.loc), nil
	}
	return nil, Errorf(TypeError, "Value %v cannot be converted to a constant", v)
}

var duidCounter uint64

func nextDUID() uint64 {
	return atomic.AddUint64(&duidCounter, 1)
}

// Signal is a named, identity-bearing value that can be assigned.
//
type Signal struct {
	valueBase
	Name      string
	Reset     int64
	ResetLess bool
	Attrs     map[string]interface{}
	// Decoder formats values of the signal for display. It may be nil.
	Decoder func(v int64) string
	shape   Shape
	duid    uint64
}

type signalConfig struct {
	name      string
	reset     interface{}
	resetLess bool
	attrs     map[string]interface{}
	decoder   func(int64) string
}

// A SignalOption configures a signal.
//
type SignalOption func(*signalConfig)

// Name sets the name of a signal.
//
func Name(name string) SignalOption {
	return func(c *signalConfig) { c.name = name }
}

// Reset sets the reset value of a signal. v must be const-castable.
//
func Reset(v interface{}) SignalOption {
	return func(c *signalConfig) { c.reset = v }
}

// ResetLess marks a signal as not affected by its domain's reset.
//
func ResetLess() SignalOption {
	return func(c *signalConfig) { c.resetLess = true }
}

// Attrs sets attributes on a signal.
//
func Attrs(attrs map[string]interface{}) SignalOption {
	return func(c *signalConfig) { c.attrs = attrs }
}

// Decoder sets the value formatter of a signal.
//
func Decoder(dec func(v int64) string) SignalOption {
	return func(c *signalConfig) { c.decoder = dec }
}

// NewSignal returns a new signal. A nil shape is unsigned(1). Other shapes
// are converted with ShapeCast. NewSignal panics if the shape is invalid or
// if the reset value is outside a Range shape.
//
func NewSignal(shape interface{}, opts ...SignalOption) *Signal {
	cfg := signalConfig{name: "$signal"}
	for _, o := range opts {
		o(&cfg)
	}
	return newSignal(shape, &cfg, callerLoc())
}

func newSignal(shape interface{}, cfg *signalConfig, loc SrcLoc) *Signal {
	var s Shape
	if shape == nil {
		s = Unsigned(1)
	} else {
		s = mustShape(shape)
	}

	var rv *Const
	if cfg.reset == nil {
		rv = newConst(0, Unsigned(1), loc)
	} else {
		var err error
		if rv, err = ConstCast(cfg.reset); err != nil {
			raise(TypeError, "Reset value must be a constant-castable expression, not %v", cfg.reset)
		}
	}

	if cfg.reset != nil && rv.Value != 0 && rv.Value != -1 {
		rs := rv.Shape()
		if rs.Signed && !s.Signed {
			diag.Warnf(diag.SyntaxWarning, loc.String(), "Reset value %v is signed, but the signal shape is %v", rv.Value, s)
		} else if rs.Width > s.Width || rs.Width == s.Width && s.Signed && !rs.Signed {
			diag.Warnf(diag.SyntaxWarning, loc.String(), "Reset value %v will be truncated to the signal shape %v", rv.Value, s)
		}
	}

	if r, ok := shape.(Range); ok && cfg.reset != nil && !r.Contains(rv.Value) {
		if rv.Value == r.Stop {
			raise(SyntaxError, "Reset value %d equals the non-inclusive end of the signal shape %v; this is likely an off-by-one error", rv.Value, r)
		}
		raise(SyntaxError, "Reset value %d is not within the signal shape %v", rv.Value, r)
	}

	sig := &Signal{
		valueBase: valueBase{loc},
		Name:      cfg.name,
		Reset:     Normalize(rv.Value, s),
		ResetLess: cfg.resetLess,
		Attrs:     make(map[string]interface{}, len(cfg.attrs)),
		Decoder:   cfg.decoder,
		shape:     s,
		duid:      nextDUID(),
	}
	for k, v := range cfg.attrs {
		sig.Attrs[k] = v
	}
	if sig.Decoder == nil {
		if en, ok := shape.(EnumNamer); ok {
			sig.Decoder = func(v int64) string {
				if n, ok := en.Name(v); ok {
					return n + "/" + strconv.FormatInt(v, 10)
				}
				return strconv.FormatInt(v, 10)
			}
		}
	}
	return sig
}

// SignalLike returns a new signal with the same shape, reset value,
// reset-less flag, attributes and decoder as other. The default name is
// "$like".
//
func SignalLike(other *Signal, opts ...SignalOption) *Signal {
	cfg := signalConfig{
		name:      "$like",
		reset:     other.Reset,
		resetLess: other.ResetLess,
		attrs:     other.Attrs,
		decoder:   other.Decoder,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return newSignal(other.shape, &cfg, callerLoc())
}

// Shape implements Value.
//
func (s *Signal) Shape() Shape { return s.shape }

// DUID returns the allocation order of s.
//
func (s *Signal) DUID() uint64 { return s.duid }

func (s *Signal) String() string { return "(sig " + s.Name + ")" }

// Format formats v using the signal's decoder.
//
func (s *Signal) Format(v int64) string {
	if s.Decoder != nil {
		return s.Decoder(v)
	}
	return strconv.FormatInt(v, 10)
}

// CombDomain is the name of the implicit combinational domain.
//
const CombDomain = "comb"

// ClockSignal is a late-bound reference to the clock of a domain.
//
type ClockSignal struct {
	valueBase
	Domain string
}

// NewClockSignal returns a reference to the clock of domain.
//
func NewClockSignal(domain string) *ClockSignal {
	if domain == CombDomain {
		raise(ValueError, "Domain '%s' does not have a clock", domain)
	}
	return &ClockSignal{valueBase{callerLoc()}, domain}
}

// Shape implements Value.
//
func (*ClockSignal) Shape() Shape { return Shape{1, false} }

func (c *ClockSignal) String() string { return "(clk " + c.Domain + ")" }

// ResetSignal is a late-bound reference to the reset of a domain.
//
type ResetSignal struct {
	valueBase
	Domain         string
	AllowResetLess bool
}

// NewResetSignal returns a reference to the reset of domain. If
// allowResetLess is true, referring to a reset-less domain yields a constant
// 0 instead of an error.
//
func NewResetSignal(domain string, allowResetLess bool) *ResetSignal {
	if domain == CombDomain {
		raise(ValueError, "Domain '%s' does not have a reset", domain)
	}
	return &ResetSignal{valueBase{callerLoc()}, domain, allowResetLess}
}

// Shape implements Value.
//
func (*ResetSignal) Shape() Shape { return Shape{1, false} }

func (r *ResetSignal) String() string { return "(rst " + r.Domain + ")" }

// AnyKind distinguishes AnyConst from AnySeq.
//
type AnyKind int

// AnyValue kinds.
//
const (
	AnyConstKind AnyKind = iota
	AnySeqKind
)

// AnyValue is a formal verification value chosen by the solver.
//
type AnyValue struct {
	valueBase
	Kind  AnyKind
	shape Shape
	duid  uint64
}

// AnyConst returns a value that is constant but otherwise unconstrained.
//
func AnyConst(shape interface{}) *AnyValue {
	return &AnyValue{valueBase{callerLoc()}, AnyConstKind, mustShape(shape), nextDUID()}
}

// AnySeq returns a value that can change on every cycle.
//
func AnySeq(shape interface{}) *AnyValue {
	return &AnyValue{valueBase{callerLoc()}, AnySeqKind, mustShape(shape), nextDUID()}
}

// Shape implements Value.
//
func (a *AnyValue) Shape() Shape { return a.shape }

func (a *AnyValue) String() string {
	if a.Kind == AnyConstKind {
		return fmt.Sprintf("(anyconst %d'%s)", a.shape.Width, signChar(a.shape.Signed))
	}
	return fmt.Sprintf("(anyseq %d'%s)", a.shape.Width, signChar(a.shape.Signed))
}

func signChar(signed bool) string {
	if signed {
		return "s"
	}
	return ""
}

// Initial is 1 during the first cycle of a formal verification run.
//
type Initial struct {
	valueBase
}

// NewInitial returns an Initial value.
//
func NewInitial() *Initial { return &Initial{valueBase{callerLoc()}} }

// Shape implements Value.
//
func (*Initial) Shape() Shape { return Shape{1, false} }

func (*Initial) String() string { return "(initial)" }
