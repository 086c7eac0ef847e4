// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

// ArrayState is the mutability state of an Array.
//
type ArrayState int

// Array states.
//
const (
	Mutable ArrayState = iota
	// Frozen arrays have been indexed with a value and can no longer change.
	Frozen
)

// Array is an ordered collection of values that can be indexed with a
// Value. Once indexed with a Value, the array is frozen and any attempt to
// change it fails.
//
type Array struct {
	elems    []Value
	state    ArrayState
	frozenAt SrcLoc
}

// NewArray returns a new mutable array holding elems.
//
func NewArray(elems ...interface{}) *Array {
	a := &Array{elems: make([]Value, len(elems))}
	for i, e := range elems {
		a.elems[i] = Cast(e)
	}
	return a
}

// State returns the array state and, for frozen arrays, the location of the
// first value-indexed access.
//
func (a *Array) State() (ArrayState, SrcLoc) { return a.state, a.frozenAt }

// Len returns the number of elements.
//
func (a *Array) Len() int { return len(a.elems) }

// Elem returns the i-th element.
//
func (a *Array) Elem(i int) Value { return a.elems[i] }

// Elems returns a copy of the elements.
//
func (a *Array) Elems() []Value { return append([]Value(nil), a.elems...) }

// Index returns a proxy selecting the element at index. If index is a
// constant, the element is returned directly and the array stays mutable.
// Negative constant indices count from the end of the array.
//
func (a *Array) Index(index interface{}) Value {
	if i, ok := toInt64(index); ok {
		n := int64(len(a.elems))
		if i < -n || i >= n {
			raise(IndexError, "Index %d is out of bounds for an array of %d elements", i, n)
		}
		if i < 0 {
			i += n
		}
		return a.elems[i]
	}
	idx := Cast(index)
	loc := callerLoc()
	if a.state == Mutable {
		a.state = Frozen
		a.frozenAt = loc
	}
	return &ArrayProxy{valueBase{loc}, append([]Value(nil), a.elems...), idx}
}

func (a *Array) checkMutable() error {
	if a.state == Frozen {
		return Errorf(ValueError, "Array can no longer be mutated after it was indexed with a value at %s", a.frozenAt)
	}
	return nil
}

// Set replaces the i-th element.
//
func (a *Array) Set(i int, v interface{}) error {
	if err := a.checkMutable(); err != nil {
		return err
	}
	a.elems[i] = Cast(v)
	return nil
}

// Append appends v to the array.
//
func (a *Array) Append(v interface{}) error {
	if err := a.checkMutable(); err != nil {
		return err
	}
	a.elems = append(a.elems, Cast(v))
	return nil
}

// Insert inserts v before position i.
//
func (a *Array) Insert(i int, v interface{}) error {
	if err := a.checkMutable(); err != nil {
		return err
	}
	a.elems = append(a.elems, nil)
	copy(a.elems[i+1:], a.elems[i:])
	a.elems[i] = Cast(v)
	return nil
}

// Delete removes the i-th element.
//
func (a *Array) Delete(i int) error {
	if err := a.checkMutable(); err != nil {
		return err
	}
	a.elems = append(a.elems[:i], a.elems[i+1:]...)
	return nil
}
