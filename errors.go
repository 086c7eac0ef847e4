// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"

	"github.com/db47h/rtl/internal/diag"
	"github.com/pkg/errors"
)

const syntaxWarning = diag.SyntaxWarning

// warnf reports a non-fatal diagnostic at loc.
func warnf(category string, loc SrcLoc, format string, args ...interface{}) {
	diag.Warnf(category, loc.String(), format, args...)
}

// ErrorKind classifies errors reported by the core.
//
type ErrorKind int

// Error kinds.
//
const (
	TypeError ErrorKind = iota
	ValueError
	SyntaxError
	RecursionError
	AttributeError
	IndexError
	NameError
	DomainError
	DriverConflict
	OverflowError
)

var kindNames = [...]string{
	TypeError:      "TypeError",
	ValueError:     "ValueError",
	SyntaxError:    "SyntaxError",
	RecursionError: "RecursionError",
	AttributeError: "AttributeError",
	IndexError:     "IndexError",
	NameError:      "NameError",
	DomainError:    "DomainError",
	DriverConflict: "DriverConflict",
	OverflowError:  "OverflowError",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the error type returned (or raised through panics by the
// expression constructors) by this package.
//
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Errorf returns a new *Error of the given kind wrapped with a stack trace.
//
func Errorf(kind ErrorKind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// IsKind reports whether err, or any error it wraps, is an *Error of the
// given kind.
//
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err and true if err wraps an *Error.
//
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// raise panics with a new *Error. Used by the expression constructors.
func raise(kind ErrorKind, format string, args ...interface{}) {
	panic(Errorf(kind, format, args...))
}

// Catch runs f and converts a panic raised by an expression constructor back
// into an error. Other panics are propagated.
//
func Catch(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				if _, ok := KindOf(e); ok {
					err = e
					return
				}
			}
			panic(r)
		}
	}()
	f()
	return nil
}
