// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"runtime"

	"github.com/db47h/rtl"
	"github.com/pkg/errors"
)

// Delay suspends a process for Interval. A zero interval resumes the process
// in the next delta cycle of the current instant.
//
type Delay struct{ Interval Time }

// Settle suspends a process until every combinational signal has settled.
//
type Settle struct{}

// Tick suspends a process until the next active clock edge of Domain. An
// empty Domain is "sync".
//
type Tick struct{ Domain string }

// Passive marks a process as passive. Simulations run while any process is
// active.
//
type Passive struct{}

// Active marks a process as active.
//
type Active struct{}

func (d Delay) String() string { return "(delay " + d.Interval.String() + ")" }
func (Settle) String() string   { return "(settle)" }
func (t Tick) String() string   { return "(tick " + t.Domain + ")" }
func (Passive) String() string  { return "(passive)" }
func (Active) String() string   { return "(active)" }

type procBase struct {
	runnable bool
	passive  bool
}

func (p *procBase) base() *procBase { return p }

// process is anything the event loop runs.
type process interface {
	base() *procBase
	reset()
	run() error
}

// rtlProcess runs a compiled routine. Combinational routines are runnable
// after a reset in order to compute their initial outputs.
type rtlProcess struct {
	procBase
	r    *routine
	name string
}

func (p *rtlProcess) reset() {
	p.runnable = p.r.comb
	p.passive = true
}

func (p *rtlProcess) run() error {
	p.r.run()
	return nil
}

// clockProcess toggles a clock signal with a 50% duty cycle.
type clockProcess struct {
	procBase
	tl      *timeline
	s       *slot
	phase   Time
	period  Time
	initial bool
}

func (p *clockProcess) reset() {
	p.runnable = true
	p.passive = true
	p.initial = true
}

func (p *clockProcess) run() error {
	if p.initial {
		p.initial = false
		p.tl.delay(p.phase, p)
		return nil
	}
	p.s.set(p.s.curr ^ 1)
	p.tl.delay(p.period/2, p)
	return nil
}

type request struct {
	cmd  interface{}
	exit bool
	err  error
}

type reply struct {
	val   int64
	err   error
	abort bool
}

// coroProcess runs a user process function in its own goroutine. Control
// is handed over between the event loop and the goroutine, so that only one
// of them runs at any time.
type coroProcess struct {
	procBase
	sim        *Simulator
	fn         func(*Ctx)
	first      interface{}
	defaultCmd interface{}
	loc        string
	waitsOn    []*rtl.Signal

	started bool
	done    bool
	reqs    chan request
	reps    chan reply
	exited  chan struct{}
}

func (p *coroProcess) reset() {
	p.stop()
	p.runnable = true
	p.passive = false
}

// stop terminates the process goroutine.
func (p *coroProcess) stop() {
	if p.started && !p.done {
		p.reps <- reply{abort: true}
		<-p.exited
	}
	p.clearTriggers()
	p.sim.tl.cancel(p)
	p.started, p.done = false, false
}

func (p *coroProcess) addTrigger(sig *rtl.Signal, trigger int64) {
	p.sim.st.addTrigger(p, sig, &trigger)
	p.waitsOn = append(p.waitsOn, sig)
}

func (p *coroProcess) clearTriggers() {
	for _, sig := range p.waitsOn {
		p.sim.st.removeTrigger(p, sig)
	}
	p.waitsOn = p.waitsOn[:0]
}

func (p *coroProcess) run() error {
	if p.done {
		return nil
	}
	p.clearTriggers()
	if !p.started {
		p.started = true
		p.reqs = make(chan request)
		p.reps = make(chan reply)
		p.exited = make(chan struct{})
		go p.main(&Ctx{p: p, reqs: p.reqs, reps: p.reps}, p.exited)
	} else {
		p.reps <- reply{}
	}
	for {
		req := <-p.reqs
		if req.exit {
			p.done = true
			p.passive = true
			return req.err
		}
		v, suspend, err := p.exec(req.cmd)
		if suspend {
			return nil
		}
		p.reps <- reply{val: v, err: err}
	}
}

func (p *coroProcess) main(ctx *Ctx, exited chan struct{}) {
	defer func() {
		defer close(exited)
		if ctx.aborted {
			return
		}
		var err error
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrapf(e, "process %s", p.loc)
			} else {
				err = errors.Errorf("process %s panicked: %v", p.loc, r)
			}
		}
		ctx.reqs <- request{exit: true, err: err}
	}()
	if _, err := ctx.Do(p.first); err != nil {
		panic(err)
	}
	p.fn(ctx)
}

// exec executes a command on behalf of the process. suspend is true if the
// process must wait.
func (p *coroProcess) exec(cmd interface{}) (v int64, suspend bool, err error) {
	if cmd == nil {
		cmd = p.defaultCmd
	}
	st := p.sim.st
	switch cmd := cmd.(type) {
	case nil:
		return 0, false, rtl.Errorf(rtl.TypeError,
			"Received default command from process %s that was added with AddProcess; did you mean to add this process with AddSyncProcess instead?", p.loc)
	case rtl.Value:
		v, err = evalValue(st, cmd)
		return v, false, err
	case rtl.Statement:
		r, err := compileRoutine(st, rtl.NewSignalSet(), []rtl.Statement{cmd}, false, nil)
		if err != nil {
			return 0, false, err
		}
		r.run()
		return 0, false, nil
	case Tick:
		name := cmd.Domain
		if name == "" {
			name = "sync"
		}
		if name == rtl.CombDomain {
			return 0, false, rtl.Errorf(rtl.ValueError, "Unable to tick the combinatorial domain!")
		}
		cd, ok := p.sim.domains[name]
		if !ok {
			return 0, false, rtl.Errorf(rtl.NameError, "Received command %v that refers to a nonexistent domain '%s' from process %s", cmd, name, p.loc)
		}
		p.addTrigger(cd.Clk, edgeValue(cd))
		if cd.Rst != nil && cd.AsyncReset {
			p.addTrigger(cd.Rst, 1)
		}
		return 0, true, nil
	case Settle:
		p.sim.tl.delay(0, p)
		return 0, true, nil
	case Delay:
		if cmd.Interval < 0 {
			return 0, false, rtl.Errorf(rtl.ValueError, "Cannot delay by a negative interval %v", cmd.Interval)
		}
		p.sim.tl.delay(cmd.Interval, p)
		return 0, true, nil
	case Passive:
		p.passive = true
		return 0, false, nil
	case Active:
		p.passive = false
		return 0, false, nil
	}
	return 0, false, rtl.Errorf(rtl.TypeError, "Received unsupported command %v from process %s", cmd, p.loc)
}

func edgeValue(cd *rtl.ClockDomain) int64 {
	if cd.ClkEdge == rtl.NegEdge {
		return 0
	}
	return 1
}

// Ctx is the handle of a running process on the simulation. It must only
// be used from the process function it was passed to.
//
// Methods other than Do panic on error, which terminates the process. The
// error is then returned by Simulator.Advance.
//
type Ctx struct {
	p       *coroProcess
	reqs    chan request
	reps    chan reply
	aborted bool
}

// Do executes a command and returns its result. cmd may be one of Delay,
// Settle, Tick, Passive, Active, an rtl.Value to evaluate or an
// rtl.Statement to execute. A nil cmd executes the default command of the
// process.
//
func (c *Ctx) Do(cmd interface{}) (int64, error) {
	c.reqs <- request{cmd: cmd}
	r := <-c.reps
	if r.abort {
		c.aborted = true
		runtime.Goexit()
	}
	return r.val, r.err
}

func (c *Ctx) must(cmd interface{}) int64 {
	v, err := c.Do(cmd)
	if err != nil {
		panic(err)
	}
	return v
}

// Delay suspends the process for d.
//
func (c *Ctx) Delay(d Time) { c.must(Delay{d}) }

// Settle suspends the process until combinational logic has settled.
//
func (c *Ctx) Settle() { c.must(Settle{}) }

// Tick waits for the next active edge of the named domain ("sync" if
// empty).
//
func (c *Ctx) Tick(domain string) { c.must(Tick{domain}) }

// Passive marks the process as passive.
//
func (c *Ctx) Passive() { c.must(Passive{}) }

// Active marks the process as active.
//
func (c *Ctx) Active() { c.must(Active{}) }

// Yield executes the default command of the process: a Tick of its domain
// for synchronous processes.
//
func (c *Ctx) Yield() { c.must(nil) }

// Get returns the current value of v.
//
func (c *Ctx) Get(v interface{}) int64 { return c.must(rtl.Cast(v)) }

// Set assigns rhs to lhs. The new value is visible after the next commit.
//
func (c *Ctx) Set(lhs rtl.Value, rhs interface{}) { c.must(rtl.NewAssign(lhs, rhs)) }

// Exec executes a statement.
//
func (c *Ctx) Exec(s rtl.Statement) { c.must(s) }

// Now returns the current simulation time.
//
func (c *Ctx) Now() Time { return c.p.sim.tl.now }
