// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// SignalKey identifies a signal-like value: a Signal by allocation order,
// ClockSignal and ResetSignal by domain name. SignalKey is comparable and
// can be used as a map key.
//
type SignalKey struct {
	kind   uint8
	duid   uint64
	domain string
}

// SignalKeyOf returns the key of a *Signal, *ClockSignal or *ResetSignal.
//
func SignalKeyOf(v Value) (SignalKey, error) {
	switch s := v.(type) {
	case *Signal:
		return SignalKey{0, s.duid, ""}, nil
	case *ClockSignal:
		return SignalKey{1, 0, s.Domain}, nil
	case *ResetSignal:
		return SignalKey{2, 0, s.Domain}, nil
	}
	return SignalKey{}, Errorf(TypeError, "Object %v is not a signal", v)
}

func mustSignalKey(v Value) SignalKey {
	k, err := SignalKeyOf(v)
	if err != nil {
		panic(err)
	}
	return k
}

// Less orders keys: signals by allocation order first, then clocks and
// resets by domain name.
//
func (k SignalKey) Less(o SignalKey) bool {
	if k.kind != o.kind {
		return k.kind < o.kind
	}
	if k.kind == 0 {
		return k.duid < o.duid
	}
	return k.domain < o.domain
}

// ValueKey wraps a Value with structural hashing and equality. Constants,
// operators, slices, parts, concatenations, array proxies and samples are
// compared structurally; signals and formal values by identity; clock and
// reset references by domain.
//
type ValueKey struct {
	v    Value
	hash uint64
}

// KeyOf returns the key of v.
//
func KeyOf(v Value) ValueKey {
	return ValueKey{v, hashValue(v)}
}

// Value returns the wrapped value.
//
func (k ValueKey) Value() Value { return k.v }

// Hash returns the structural hash of the wrapped value.
//
func (k ValueKey) Hash() uint64 { return k.hash }

// Equal reports whether k and o are equal keys.
//
func (k ValueKey) Equal(o ValueKey) bool {
	return k.hash == o.hash && valuesEqual(k.v, o.v)
}

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) str(s string) {
	h.u64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func hashValue(v Value) uint64 {
	h := hasher{d: xxhash.New()}
	h.value(v)
	return h.d.Sum64()
}

func (h *hasher) value(v Value) {
	switch v := v.(type) {
	case *Const:
		h.u64(1)
		h.u64(uint64(v.Value))
		h.u64(uint64(v.Width))
	case *Signal:
		h.u64(2)
		h.u64(v.duid)
	case *AnyValue:
		h.u64(3)
		h.u64(v.duid)
	case *ClockSignal:
		h.u64(4)
		h.str(v.Domain)
	case *ResetSignal:
		h.u64(5)
		h.str(v.Domain)
	case *Operator:
		h.u64(6)
		h.str(v.Op)
		h.u64(uint64(len(v.Operands)))
		for _, o := range v.Operands {
			h.value(o)
		}
	case *Slice:
		h.u64(7)
		h.value(v.Value)
		h.u64(uint64(v.Start))
		h.u64(uint64(v.Stop))
	case *Part:
		h.u64(8)
		h.value(v.Value)
		h.value(v.Offset)
		h.u64(uint64(v.Width))
		h.u64(uint64(v.Stride))
	case *Cat:
		h.u64(9)
		h.u64(uint64(len(v.Parts)))
		for _, p := range v.Parts {
			h.value(p)
		}
	case *ArrayProxy:
		h.u64(10)
		h.value(v.Index)
		h.u64(uint64(len(v.Elems)))
		for _, e := range v.Elems {
			h.value(e)
		}
	case *Sample:
		h.u64(11)
		h.value(v.Expr)
		h.u64(uint64(v.Clocks))
		h.str(v.Domain)
	case *Initial:
		h.u64(0)
	default:
		panic(Errorf(TypeError, "Object %v cannot be used as a key in value collections", v))
	}
}

func valuesEqual(a, b Value) bool {
	switch a := a.(type) {
	case *Const:
		b, ok := b.(*Const)
		return ok && a.Value == b.Value && a.Width == b.Width
	case *Signal:
		b, ok := b.(*Signal)
		return ok && a == b
	case *AnyValue:
		b, ok := b.(*AnyValue)
		return ok && a == b
	case *ClockSignal:
		b, ok := b.(*ClockSignal)
		return ok && a.Domain == b.Domain
	case *ResetSignal:
		b, ok := b.(*ResetSignal)
		return ok && a.Domain == b.Domain
	case *Operator:
		b, ok := b.(*Operator)
		return ok && a.Op == b.Op && valueSlicesEqual(a.Operands, b.Operands)
	case *Slice:
		b, ok := b.(*Slice)
		return ok && a.Start == b.Start && a.Stop == b.Stop && valuesEqual(a.Value, b.Value)
	case *Part:
		b, ok := b.(*Part)
		return ok && a.Width == b.Width && a.Stride == b.Stride &&
			valuesEqual(a.Value, b.Value) && valuesEqual(a.Offset, b.Offset)
	case *Cat:
		b, ok := b.(*Cat)
		return ok && valueSlicesEqual(a.Parts, b.Parts)
	case *ArrayProxy:
		b, ok := b.(*ArrayProxy)
		return ok && valuesEqual(a.Index, b.Index) && valueSlicesEqual(a.Elems, b.Elems)
	case *Sample:
		b, ok := b.(*Sample)
		return ok && a.Clocks == b.Clocks && a.Domain == b.Domain && valuesEqual(a.Expr, b.Expr)
	case *Initial:
		_, ok := b.(*Initial)
		return ok
	}
	return false
}

func valueSlicesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SignalDict is an insertion-ordered map keyed by signal-like values. The
// zero value is an empty dictionary ready to use.
//
type SignalDict[V any] struct {
	index map[SignalKey]int
	keys  []Value
	vals  []V
}

// NewSignalDict returns an empty SignalDict.
//
func NewSignalDict[V any]() *SignalDict[V] { return &SignalDict[V]{} }

// Get returns the value stored for s.
//
func (d *SignalDict[V]) Get(s Value) (V, bool) {
	if i, ok := d.index[mustSignalKey(s)]; ok {
		return d.vals[i], true
	}
	var zero V
	return zero, false
}

// Has returns true if s is a key of d.
//
func (d *SignalDict[V]) Has(s Value) bool {
	_, ok := d.index[mustSignalKey(s)]
	return ok
}

// Set sets the value for s. New keys are appended.
//
func (d *SignalDict[V]) Set(s Value, v V) {
	k := mustSignalKey(s)
	if i, ok := d.index[k]; ok {
		d.vals[i] = v
		return
	}
	if d.index == nil {
		d.index = make(map[SignalKey]int)
	}
	d.index[k] = len(d.keys)
	d.keys = append(d.keys, s)
	d.vals = append(d.vals, v)
}

// Delete removes s from d.
//
func (d *SignalDict[V]) Delete(s Value) {
	k := mustSignalKey(s)
	i, ok := d.index[k]
	if !ok {
		return
	}
	delete(d.index, k)
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	for j := i; j < len(d.keys); j++ {
		d.index[mustSignalKey(d.keys[j])] = j
	}
}

// Len returns the number of entries.
//
func (d *SignalDict[V]) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
//
func (d *SignalDict[V]) Keys() []Value { return append([]Value(nil), d.keys...) }

// Range calls f for each entry in insertion order until f returns false.
//
func (d *SignalDict[V]) Range(f func(k Value, v V) bool) {
	for i, k := range d.keys {
		if !f(k, d.vals[i]) {
			return
		}
	}
}

// SignalSet is an insertion-ordered set of signal-like values. The zero
// value is an empty set ready to use.
//
type SignalSet struct {
	d SignalDict[struct{}]
}

// NewSignalSet returns a set holding sigs.
//
func NewSignalSet(sigs ...Value) *SignalSet {
	s := &SignalSet{}
	for _, sig := range sigs {
		s.Add(sig)
	}
	return s
}

// Add adds s to the set.
//
func (s *SignalSet) Add(sig Value) { s.d.Set(sig, struct{}{}) }

// Has returns true if sig is in the set.
//
func (s *SignalSet) Has(sig Value) bool { return s.d.Has(sig) }

// Delete removes sig from the set.
//
func (s *SignalSet) Delete(sig Value) { s.d.Delete(sig) }

// Len returns the number of elements.
//
func (s *SignalSet) Len() int { return s.d.Len() }

// Slice returns the elements in insertion order.
//
func (s *SignalSet) Slice() []Value { return s.d.Keys() }

// Signals returns the elements that are *Signal, in insertion order.
//
func (s *SignalSet) Signals() []*Signal {
	r := make([]*Signal, 0, s.Len())
	for _, v := range s.d.keys {
		if sig, ok := v.(*Signal); ok {
			r = append(r, sig)
		}
	}
	return r
}

// Update adds all elements of o to s.
//
func (s *SignalSet) Update(o *SignalSet) {
	if o == nil {
		return
	}
	for _, v := range o.d.keys {
		s.Add(v)
	}
}

// Union returns a new set with the elements of s followed by those of o.
//
func (s *SignalSet) Union(o *SignalSet) *SignalSet {
	r := NewSignalSet(s.d.keys...)
	r.Update(o)
	return r
}

// Difference returns a new set with the elements of s not in o.
//
func (s *SignalSet) Difference(o *SignalSet) *SignalSet {
	r := &SignalSet{}
	for _, v := range s.d.keys {
		if !o.Has(v) {
			r.Add(v)
		}
	}
	return r
}

// Intersects returns true if s and o have at least one common element.
//
func (s *SignalSet) Intersects(o *SignalSet) bool {
	for _, v := range s.d.keys {
		if o.Has(v) {
			return true
		}
	}
	return false
}

// ValueDict is an insertion-ordered map keyed by values with structural
// equality. The zero value is an empty dictionary ready to use.
//
type ValueDict[V any] struct {
	buckets map[uint64][]int
	keys    []ValueKey
	vals    []V
}

// NewValueDict returns an empty ValueDict.
//
func NewValueDict[V any]() *ValueDict[V] { return &ValueDict[V]{} }

func (d *ValueDict[V]) find(k ValueKey) int {
	for _, i := range d.buckets[k.hash] {
		if d.keys[i].Equal(k) {
			return i
		}
	}
	return -1
}

// Get returns the value stored for v.
//
func (d *ValueDict[V]) Get(v Value) (V, bool) {
	if i := d.find(KeyOf(v)); i >= 0 {
		return d.vals[i], true
	}
	var zero V
	return zero, false
}

// Has returns true if v is a key of d.
//
func (d *ValueDict[V]) Has(v Value) bool { return d.find(KeyOf(v)) >= 0 }

// Set sets the value for v.
//
func (d *ValueDict[V]) Set(v Value, val V) {
	k := KeyOf(v)
	if i := d.find(k); i >= 0 {
		d.vals[i] = val
		return
	}
	if d.buckets == nil {
		d.buckets = make(map[uint64][]int)
	}
	d.buckets[k.hash] = append(d.buckets[k.hash], len(d.keys))
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, val)
}

// Len returns the number of entries.
//
func (d *ValueDict[V]) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
//
func (d *ValueDict[V]) Keys() []Value {
	r := make([]Value, len(d.keys))
	for i, k := range d.keys {
		r[i] = k.v
	}
	return r
}

// Range calls f for each entry in insertion order until f returns false.
//
func (d *ValueDict[V]) Range(f func(k Value, v V) bool) {
	for i, k := range d.keys {
		if !f(k.v, d.vals[i]) {
			return
		}
	}
}

// ValueSet is an insertion-ordered set of values with structural equality.
//
type ValueSet struct {
	d ValueDict[struct{}]
}

// NewValueSet returns a set holding vals.
//
func NewValueSet(vals ...Value) *ValueSet {
	s := &ValueSet{}
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

// Add adds v to the set.
//
func (s *ValueSet) Add(v Value) { s.d.Set(v, struct{}{}) }

// Has returns true if v is in the set.
//
func (s *ValueSet) Has(v Value) bool { return s.d.Has(v) }

// Len returns the number of elements.
//
func (s *ValueSet) Len() int { return s.d.Len() }

// Slice returns the elements in insertion order.
//
func (s *ValueSet) Slice() []Value { return s.d.Keys() }
