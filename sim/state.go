// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"strconv"

	"github.com/db47h/rtl"
)

// Time is a simulation time in picoseconds.
//
type Time int64

// Common durations.
//
const (
	Picosecond  Time = 1
	Nanosecond       = 1000 * Picosecond
	Microsecond      = 1000 * Nanosecond
	Millisecond      = 1000 * Microsecond
	Second           = 1000 * Millisecond
)

func (t Time) String() string {
	switch {
	case t == 0:
		return "0s"
	case t%Second == 0:
		return strconv.FormatInt(int64(t/Second), 10) + "s"
	case t%Millisecond == 0:
		return strconv.FormatInt(int64(t/Millisecond), 10) + "ms"
	case t%Microsecond == 0:
		return strconv.FormatInt(int64(t/Microsecond), 10) + "us"
	case t%Nanosecond == 0:
		return strconv.FormatInt(int64(t/Nanosecond), 10) + "ns"
	}
	return strconv.FormatInt(int64(t), 10) + "ps"
}

// waiter is a process waiting on a slot change. A nil trigger wakes up the
// process on any change.
type waiter struct {
	p       process
	trigger *int64
}

// slot holds the state of a signal. curr is the committed value and next
// the pending value. Both are normalized to the signal shape.
type slot struct {
	sig     *rtl.Signal
	curr    int64
	next    int64
	pending bool
	changed bool // already listed as changed in the current instant
	waiters []waiter
	st      *state
}

func (s *slot) set(v int64) {
	if s.next == v {
		return
	}
	s.next = v
	if !s.pending {
		s.pending = true
		s.st.pending = append(s.st.pending, s)
	}
}

// commit makes the pending value current and reports whether any waiting
// process was woken up.
func (s *slot) commit() (changed, awoken bool) {
	s.pending = false
	if s.curr == s.next {
		return false, false
	}
	s.curr = s.next
	for _, w := range s.waiters {
		if w.trigger == nil || *w.trigger == s.curr {
			w.p.base().runnable = true
			awoken = true
		}
	}
	return true, awoken
}

// state is the set of signal slots of a simulation.
type state struct {
	index   rtl.SignalDict[int]
	slots   []*slot
	pending []*slot
}

// slotOf returns the slot index of sig, allocating a new slot on first
// use.
func (st *state) slotOf(sig *rtl.Signal) int {
	if i, ok := st.index.Get(sig); ok {
		return i
	}
	i := len(st.slots)
	st.slots = append(st.slots, &slot{sig: sig, curr: sig.Reset, next: sig.Reset, st: st})
	st.index.Set(sig, i)
	return i
}

func (st *state) slot(sig *rtl.Signal) *slot { return st.slots[st.slotOf(sig)] }

func (st *state) reset() {
	for _, s := range st.slots {
		s.curr, s.next, s.pending, s.changed = s.sig.Reset, s.sig.Reset, false, false
	}
	st.pending = st.pending[:0]
}

func (st *state) addTrigger(p process, sig *rtl.Signal, trigger *int64) {
	s := st.slot(sig)
	for i := range s.waiters {
		if s.waiters[i].p == p {
			s.waiters[i].trigger = trigger
			return
		}
	}
	s.waiters = append(s.waiters, waiter{p, trigger})
}

func (st *state) removeTrigger(p process, sig *rtl.Signal) {
	s := st.slot(sig)
	for i := range s.waiters {
		if s.waiters[i].p == p {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// commit commits every pending value. Changed slots not yet in changed are
// appended to it. It returns the number of committed changes and reports
// whether the state converged, that is no process was woken up.
func (st *state) commit(changed []*slot) (_ []*slot, n int, converged bool) {
	converged = true
	for _, s := range st.pending {
		c, awoken := s.commit()
		if awoken {
			converged = false
		}
		if !c {
			continue
		}
		n++
		if !s.changed {
			s.changed = true
			changed = append(changed, s)
		}
	}
	st.pending = st.pending[:0]
	return changed, n, converged
}

// endInstant clears the changed marks of slots.
func endInstant(changed []*slot) {
	for _, s := range changed {
		s.changed = false
	}
}

type deadline struct {
	p  process
	at Time
}

// timeline schedules processes waiting for a delay.
type timeline struct {
	now       Time
	deadlines []deadline
}

func (t *timeline) reset() {
	t.now = 0
	t.deadlines = t.deadlines[:0]
}

func (t *timeline) delay(d Time, p process) {
	t.deadlines = append(t.deadlines, deadline{p, t.now + d})
}

// advance moves time to the nearest deadline and makes the processes
// waiting for it runnable. It returns false if no deadline is pending.
func (t *timeline) advance() bool {
	if len(t.deadlines) == 0 {
		return false
	}
	nearest := t.deadlines[0].at
	for _, d := range t.deadlines[1:] {
		if d.at < nearest {
			nearest = d.at
		}
	}
	rest := t.deadlines[:0]
	for _, d := range t.deadlines {
		if d.at == nearest {
			d.p.base().runnable = true
			continue
		}
		rest = append(rest, d)
	}
	t.deadlines = rest
	t.now = nearest
	return true
}

func (t *timeline) cancel(p process) {
	rest := t.deadlines[:0]
	for _, d := range t.deadlines {
		if d.p != p {
			rest = append(rest, d)
		}
	}
	t.deadlines = rest
}
