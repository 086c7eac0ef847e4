// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"strings"
	"sync"

	"github.com/db47h/rtl/internal/diag"
)

// Statement is a node of the statement tree: *Assign, *Property or *Switch.
//
type Statement interface {
	// LHSSignals returns the signals driven by the statement.
	LHSSignals() *SignalSet
	// RHSSignals returns the signals read by the statement.
	RHSSignals() *SignalSet
	SrcLoc() SrcLoc
	String() string
	isStatement()
}

type stmtBase struct {
	loc SrcLoc
}

func (s *stmtBase) SrcLoc() SrcLoc { return s.loc }
func (*stmtBase) isStatement()      {}

// Assign assigns RHS to LHS.
//
type Assign struct {
	stmtBase
	LHS Value
	RHS Value
}

// NewAssign returns the statement lhs = rhs. It panics if lhs cannot be
// assigned.
//
func NewAssign(lhs, rhs interface{}) *Assign {
	return newAssign(Cast(lhs), Cast(rhs), callerLoc())
}

func newAssign(lhs, rhs Value, loc SrcLoc) *Assign {
	lhsSignals(lhs)
	return &Assign{stmtBase{loc}, lhs, rhs}
}

// Inc returns the statement s = s + by.
//
func Inc(s Value, by interface{}) *Assign {
	loc := callerLoc()
	return newAssign(s, newOperator("+", loc, s, by), loc)
}

// Dec returns the statement s = s - by.
//
func Dec(s Value, by interface{}) *Assign {
	loc := callerLoc()
	return newAssign(s, newOperator("-", loc, s, by), loc)
}

// LHSSignals implements Statement.
//
func (a *Assign) LHSSignals() *SignalSet { return lhsSignals(a.LHS) }

// RHSSignals implements Statement.
//
func (a *Assign) RHSSignals() *SignalSet {
	s := &SignalSet{}
	rhsSignals(a.LHS, s)
	rhsSignals(a.RHS, s)
	return s
}

func (a *Assign) String() string { return "(eq " + a.LHS.String() + " " + a.RHS.String() + ")" }

func lhsSignals(v Value) *SignalSet {
	s := &SignalSet{}
	collectLHS(v, s)
	return s
}

func collectLHS(v Value, s *SignalSet) {
	switch v := v.(type) {
	case *Signal, *ClockSignal, *ResetSignal:
		s.Add(v)
	case *Operator:
		if v.Op == "u" || v.Op == "s" {
			collectLHS(v.Operands[0], s)
			return
		}
		raise(TypeError, "Value %v cannot be used in assignments", v)
	case *Slice:
		collectLHS(v.Value, s)
	case *Part:
		collectLHS(v.Value, s)
	case *Cat:
		for _, p := range v.Parts {
			collectLHS(p, s)
		}
	case *ArrayProxy:
		for _, e := range v.Elems {
			collectLHS(e, s)
		}
	default:
		raise(TypeError, "Value %v cannot be used in assignments", v)
	}
}

// RHSSignals returns the signal-like values read when evaluating v.
//
func RHSSignals(v Value) *SignalSet {
	s := &SignalSet{}
	rhsSignals(v, s)
	return s
}

func rhsSignals(v Value, s *SignalSet) {
	switch v := v.(type) {
	case *Signal, *ClockSignal, *ResetSignal:
		s.Add(v)
	case *Operator:
		for _, o := range v.Operands {
			rhsSignals(o, s)
		}
	case *Slice:
		rhsSignals(v.Value, s)
	case *Part:
		rhsSignals(v.Value, s)
		rhsSignals(v.Offset, s)
	case *Cat:
		for _, p := range v.Parts {
			rhsSignals(p, s)
		}
	case *ArrayProxy:
		rhsSignals(v.Index, s)
		for _, e := range v.Elems {
			rhsSignals(e, s)
		}
	}
}

// PropertyKind is the kind of a formal property.
//
type PropertyKind string

// Property kinds.
//
const (
	AssertKind PropertyKind = "assert"
	AssumeKind PropertyKind = "assume"
	CoverKind  PropertyKind = "cover"
)

// Property is a formal verification statement. Its Check signal receives
// the truth value of Test and its Enable signal is set when the statement
// is reached.
//
type Property struct {
	stmtBase
	Kind   PropertyKind
	Test   Value
	Name   string
	Check  *Signal
	Enable *Signal
	used   bool
}

var (
	unusedMu    sync.Mutex
	unusedProps []*Property
)

// NewProperty returns a new property. Properties that are never added to a
// fragment or module are reported when a design is prepared.
//
func NewProperty(kind PropertyKind, test interface{}, name string) *Property {
	return newProperty(kind, Cast(test), name, callerLoc())
}

func newProperty(kind PropertyKind, test Value, name string, loc SrcLoc) *Property {
	switch kind {
	case AssertKind, AssumeKind, CoverKind:
	default:
		raise(ValueError, "'%s' is not a valid property kind", kind)
	}
	p := &Property{
		stmtBase: stmtBase{loc},
		Kind:     kind,
		Test:     test,
		Name:     name,
		Check:    newSignal(nil, &signalConfig{name: "$" + string(kind) + "$check", resetLess: true}, loc),
		Enable:   newSignal(nil, &signalConfig{name: "$" + string(kind) + "$en", resetLess: true}, loc),
	}
	unusedMu.Lock()
	unusedProps = append(unusedProps, p)
	unusedMu.Unlock()
	return p
}

// Assert returns an assert property.
//
func Assert(test interface{}) *Property {
	return newProperty(AssertKind, Cast(test), "", callerLoc())
}

// Assume returns an assume property.
//
func Assume(test interface{}) *Property {
	return newProperty(AssumeKind, Cast(test), "", callerLoc())
}

// Cover returns a cover property.
//
func Cover(test interface{}) *Property {
	return newProperty(CoverKind, Cast(test), "", callerLoc())
}

// LHSSignals implements Statement.
//
func (p *Property) LHSSignals() *SignalSet { return NewSignalSet(p.Enable, p.Check) }

// RHSSignals implements Statement.
//
func (p *Property) RHSSignals() *SignalSet { return RHSSignals(p.Test) }

func (p *Property) String() string {
	if p.Name != "" {
		return "(" + p.Name + ": " + string(p.Kind) + " " + p.Test.String() + ")"
	}
	return "(" + string(p.Kind) + " " + p.Test.String() + ")"
}

// markUsed flags every property in stmts, recursively, as used.
func markUsed(stmts []Statement) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *Property:
			s.used = true
		case *Switch:
			for _, c := range s.Cases {
				markUsed(c.Body)
			}
		}
	}
}

// ReportUnusedProperties warns about every property created so far that
// was never added to a fragment, and forgets about them.
//
func ReportUnusedProperties() int {
	unusedMu.Lock()
	props := unusedProps
	unusedProps = nil
	unusedMu.Unlock()
	n := 0
	for _, p := range props {
		if !p.used {
			n++
			diag.Warnf(diag.UnusedProperty, p.loc.String(), "%v created but never used", p)
		}
	}
	return n
}

// Case is a switch case specification. A nil or empty Keys list matches any
// value.
//
type Case struct {
	Keys []interface{}
	Body []Statement
	loc  SrcLoc
}

// On returns a case matching any of keys.
//
func On(keys []interface{}, body ...Statement) Case {
	return Case{keys, body, callerLoc()}
}

// Default returns a default case.
//
func Default(body ...Statement) Case { return Case{nil, body, callerLoc()} }

// SwitchCase is a normalized switch case. Patterns are bit strings of the
// test width, most significant bit first, where '-' matches either bit
// value. An empty Patterns list matches any value.
//
type SwitchCase struct {
	Patterns []string
	Body     []Statement
	Loc      SrcLoc
}

// Switch executes the body of the first case matching Test.
//
type Switch struct {
	stmtBase
	Test  Value
	Cases []SwitchCase
}

// NewSwitch returns a new switch statement. Keys can be strings of '0',
// '1' and '-' characters (whitespace is ignored), integers, or EnumValues.
//
func NewSwitch(test interface{}, cases ...Case) *Switch {
	loc := callerLoc()
	s := &Switch{stmtBase: stmtBase{loc}, Test: Cast(test)}
	for _, c := range cases {
		pats, err := normalizeKeys(c.Keys, Len(s.Test))
		if err != nil {
			panic(err)
		}
		cloc := c.loc
		if cloc == (SrcLoc{}) {
			cloc = loc
		}
		s.Cases = append(s.Cases, SwitchCase{pats, c.Body, cloc})
	}
	s.checkReachable()
	return s
}

// newSwitch builds a switch from normalized cases.
func newSwitch(test Value, cases []SwitchCase, loc SrcLoc) *Switch {
	return &Switch{stmtBase{loc}, test, cases}
}

func normalizeKeys(keys []interface{}, width int) ([]string, error) {
	var pats []string
	for _, k := range keys {
		var p string
		switch k := k.(type) {
		case string:
			var b strings.Builder
			for _, r := range k {
				switch r {
				case '0', '1', '-':
					b.WriteRune(r)
				case ' ', '\t', '\n', '\r':
				default:
					return nil, Errorf(SyntaxError, "Case pattern '%s' must consist of 0, 1, and - (don't care) bits, and may include whitespace", k)
				}
			}
			p = b.String()
		case EnumValue:
			p = formatBits(uint64(k.Value()), width)
		case []interface{}:
			sub, err := normalizeKeys(k, width)
			if err != nil {
				return nil, err
			}
			pats = append(pats, sub...)
			continue
		default:
			i, ok := toInt64(k)
			if !ok {
				return nil, Errorf(TypeError, "Object %v cannot be used as a switch key", k)
			}
			p = formatBits(uint64(i), width)
		}
		if len(p) != width {
			return nil, Errorf(ValueError, "Length mismatch between switch key and test value %d != %d", len(p), width)
		}
		pats = append(pats, p)
	}
	return pats, nil
}

// checkReachable warns about cases that follow a default case or repeat an
// earlier pattern.
func (s *Switch) checkReachable() {
	seen := make(map[string]bool)
	dflt := false
	for _, c := range s.Cases {
		if dflt {
			diag.Warnf(diag.Unreachable, c.Loc.String(), "Case %v is unreachable: it follows a default case", c.Patterns)
			continue
		}
		if len(c.Patterns) == 0 {
			dflt = true
			continue
		}
		dup := true
		for _, p := range c.Patterns {
			if !seen[p] {
				dup = false
			}
			seen[p] = true
		}
		if dup {
			diag.Warnf(diag.Unreachable, c.Loc.String(), "Case %v is unreachable: all of its patterns appear in earlier cases", c.Patterns)
		}
	}
}

// LHSSignals implements Statement.
//
func (s *Switch) LHSSignals() *SignalSet {
	r := &SignalSet{}
	for _, c := range s.Cases {
		for _, st := range c.Body {
			r.Update(st.LHSSignals())
		}
	}
	return r
}

// RHSSignals implements Statement.
//
func (s *Switch) RHSSignals() *SignalSet {
	r := RHSSignals(s.Test)
	for _, c := range s.Cases {
		for _, st := range c.Body {
			r.Update(st.RHSSignals())
		}
	}
	return r
}

func (s *Switch) String() string {
	var b strings.Builder
	b.WriteString("(switch ")
	b.WriteString(s.Test.String())
	for _, c := range s.Cases {
		b.WriteByte(' ')
		switch len(c.Patterns) {
		case 0:
			b.WriteString("(default")
		case 1:
			b.WriteString("(case " + c.Patterns[0])
		default:
			b.WriteString("(case (" + strings.Join(c.Patterns, " ") + ")")
		}
		for _, st := range c.Body {
			b.WriteByte(' ')
			b.WriteString(st.String())
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

// StatementsLHS returns the union of the signals driven by stmts.
//
func StatementsLHS(stmts []Statement) *SignalSet {
	r := &SignalSet{}
	for _, s := range stmts {
		r.Update(s.LHSSignals())
	}
	return r
}

// StatementsRHS returns the union of the signals read by stmts.
//
func StatementsRHS(stmts []Statement) *SignalSet {
	r := &SignalSet{}
	for _, s := range stmts {
		r.Update(s.RHSSignals())
	}
	return r
}
