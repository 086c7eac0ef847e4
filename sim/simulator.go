// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package sim implements an event driven simulator for rtl designs.
//
// A design is prepared, then each group of statements assigning the same
// signals in a domain is compiled into an update routine. Combinational
// routines run whenever one of their inputs changes; clocked routines run
// on the active edge of their domain clock. Pending values are committed
// once every runnable routine has run (a delta cycle), until no more
// routines are woken up.
//
// User processes are functions run in their own goroutine, one at a time,
// which communicate with the simulation through a *Ctx:
//
//	s, err := sim.New(counter)
//	if err != nil {
//		// handle error
//	}
//	defer s.Close()
//	s.AddClock(sim.Microsecond)
//	s.AddSyncProcess(func(ctx *sim.Ctx) {
//		for i := 0; i < 16; i++ {
//			fmt.Println(ctx.Get(counter.Count))
//			ctx.Yield()
//		}
//	}, "sync")
//	err = s.Run()
//
package sim

import (
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/internal/config"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Simulator simulates a prepared design.
//
type Simulator struct {
	frag    *rtl.Fragment
	st      *state
	tl      timeline
	procs   []process
	domains map[string]*rtl.ClockDomain
	clocked map[*rtl.ClockDomain]bool
	names   map[*slot]string
	traces  []*TraceSession

	log       *logrus.Logger
	metrics   *metrics
	maxDeltas int
	dump      io.Writer
}

type options struct {
	log     *logrus.Logger
	reg     prometheus.Registerer
	prepare []rtl.PrepareOption
}

// Option configures a Simulator.
//
type Option func(*options)

// WithLogger sets the logger for engine debug output.
//
func WithLogger(l *logrus.Logger) Option { return func(o *options) { o.log = l } }

// WithMetrics registers the simulator metrics with reg.
//
func WithMetrics(reg prometheus.Registerer) Option { return func(o *options) { o.reg = reg } }

// WithPrepareOptions sets the options used to prepare the design.
//
func WithPrepareOptions(opts ...rtl.PrepareOption) Option {
	return func(o *options) { o.prepare = append(o.prepare, opts...) }
}

// New returns a new simulator for design. design is prepared unless it is
// an already prepared *rtl.Fragment. A prepared fragment can only be used
// by one simulator.
//
// Callers must make sure to call Close() once the simulator is no longer
// needed in order to stop process goroutines.
//
func New(design rtl.Elaboratable, opts ...Option) (*Simulator, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}

	f, err := rtl.GetFragment(design, nil)
	if err != nil {
		return nil, err
	}
	if !f.Prepared() {
		if f, err = f.Prepare(o.prepare...); err != nil {
			return nil, err
		}
	}
	if err = f.Claim(); err != nil {
		return nil, err
	}

	cfg := config.Load()
	s := &Simulator{
		frag:      f,
		st:        &state{},
		domains:   make(map[string]*rtl.ClockDomain),
		clocked:   make(map[*rtl.ClockDomain]bool),
		names:     make(map[*slot]string),
		log:       o.log,
		maxDeltas: cfg.MaxDeltas,
	}
	if o.reg != nil {
		if s.metrics, err = newMetrics(o.reg); err != nil {
			return nil, err
		}
	}
	if cfg.SimDump {
		fd, err := os.CreateTemp("", "rtl_sim_*.txt")
		if err != nil {
			return nil, errors.Wrap(err, "failed to create routine dump file")
		}
		defer fd.Close()
		s.dump = fd
		s.log.WithField("file", fd.Name()).Info("dumping compiled routines")
	}
	if err = s.compile(f, nil); err != nil {
		return nil, err
	}
	s.dump = nil
	s.Reset()
	return s, nil
}

// compile compiles the routines of f and its subfragments.
func (s *Simulator) compile(f *rtl.Fragment, hier []string) error {
	if hier == nil {
		if hier = f.Hierarchy(); len(hier) == 0 {
			hier = []string{"top"}
		}
	}
	if names := f.SignalNames(); names != nil {
		path := strings.Join(hier, ".")
		names.Range(func(v rtl.Value, n string) bool {
			if sig, ok := v.(*rtl.Signal); ok {
				sl := s.st.slot(sig)
				if _, ok := s.names[sl]; !ok {
					s.names[sl] = path + "." + n
				}
			}
			return true
		})
	}
	for _, name := range f.IterDomains() {
		if _, ok := s.domains[name]; !ok {
			s.domains[name] = f.Domain(name)
		}
	}
	if f.Instance != nil {
		s.log.WithField("fragment", strings.Join(hier, ".")).Warnf("instance of %s is not simulated", f.Instance.Type)
		return nil
	}

	for _, domain := range f.DriverDomains() {
		sigs := f.Drivers(domain)
		stmts := rtl.FilterLHS(sigs, f.Statements)
		comb := domain == rtl.CombDomain
		var cd *rtl.ClockDomain
		if !comb {
			if cd = f.Domain(domain); cd == nil {
				return rtl.Errorf(rtl.DomainError, "Domain '%s' is used but not defined", domain)
			}
		}
		for i, group := range rtl.GroupLHS(stmts) {
			var inputs *rtl.SignalSet
			if comb {
				inputs = rtl.NewSignalSet()
			}
			gs := rtl.FilterLHS(group, stmts)
			r, err := compileRoutine(s.st, group, gs, comb, inputs)
			if err != nil {
				return err
			}
			p := &rtlProcess{r: r, name: strings.Join(hier, ".") + "/" + domain + "#" + strconv.Itoa(i)}
			if comb {
				for _, in := range inputs.Signals() {
					s.st.addTrigger(p, in, nil)
				}
			} else {
				edge := edgeValue(cd)
				s.st.addTrigger(p, cd.Clk, &edge)
				if cd.Rst != nil && cd.AsyncReset {
					one := int64(1)
					s.st.addTrigger(p, cd.Rst, &one)
				}
			}
			s.procs = append(s.procs, p)
			s.dumpRoutine(p, gs)
		}
	}

	for i, sub := range f.Subfragments {
		name := sub.Name
		if name == "" {
			name = "U$" + strconv.Itoa(i)
		}
		if err := s.compile(sub.Fragment, append(hier[:len(hier):len(hier)], name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) dumpRoutine(p *rtlProcess, stmts []rtl.Statement) {
	if s.dump == nil {
		return
	}
	var b strings.Builder
	b.WriteString("routine " + p.name)
	if p.r.comb {
		b.WriteString(" (comb)")
	}
	b.WriteString("\n  outputs:")
	for _, o := range p.r.outputs {
		b.WriteString(" " + s.nameOf(o))
	}
	b.WriteByte('\n')
	for _, st := range stmts {
		b.WriteString("  " + st.String() + "\n")
	}
	if _, err := io.WriteString(s.dump, b.String()); err != nil {
		s.log.WithError(err).Warn("failed to dump routine")
	}
}

func (s *Simulator) nameOf(sl *slot) string {
	if n, ok := s.names[sl]; ok {
		return n
	}
	return sl.sig.Name
}

// Fragment returns the prepared fragment being simulated.
//
func (s *Simulator) Fragment() *rtl.Fragment { return s.frag }

// Now returns the current simulation time.
//
func (s *Simulator) Now() Time { return s.tl.now }

func callerName(skip int) string {
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		return file + ":" + strconv.Itoa(line)
	}
	return "<unknown>"
}

func (s *Simulator) addCoroutine(fn func(*Ctx), first, defaultCmd interface{}) {
	p := &coroProcess{
		sim:        s,
		fn:         fn,
		first:      first,
		defaultCmd: defaultCmd,
		loc:        callerName(2),
	}
	p.reset()
	s.procs = append(s.procs, p)
}

// AddProcess adds a process that starts once combinational logic has
// settled after time zero. Its default command is invalid.
//
func (s *Simulator) AddProcess(fn func(ctx *Ctx)) {
	s.addCoroutine(fn, Settle{}, nil)
}

// AddSyncProcess adds a process that starts on the first active edge of
// domain ("sync" if empty), so that it observes post-reset values. Its
// default command is a Tick of domain.
//
func (s *Simulator) AddSyncProcess(fn func(ctx *Ctx), domain string) {
	if domain == "" {
		domain = "sync"
	}
	s.addCoroutine(fn, Tick{domain}, Tick{domain})
}

type clockConfig struct {
	phase    Time
	hasPhase bool
	domain   string
	ifExists bool
}

// ClockOption configures a clock added with AddClock.
//
type ClockOption func(*clockConfig)

// Phase delays the first clock edge by p, plus half a period.
//
func Phase(p Time) ClockOption {
	return func(c *clockConfig) { c.phase, c.hasPhase = p, true }
}

// Domain sets the driven domain. The default is "sync".
//
func Domain(name string) ClockOption { return func(c *clockConfig) { c.domain = name } }

// IfExists makes AddClock a no-op if the domain does not exist.
//
func IfExists() ClockOption { return func(c *clockConfig) { c.ifExists = true } }

// AddClock adds a process driving the clock of a domain with a 50% duty
// cycle. The clock toggles every period/2. The first edge happens at half a
// period unless a Phase is given.
//
func (s *Simulator) AddClock(period Time, opts ...ClockOption) error {
	cfg := clockConfig{domain: "sync"}
	for _, o := range opts {
		o(&cfg)
	}
	cd, ok := s.domains[cfg.domain]
	if !ok {
		if cfg.ifExists {
			return nil
		}
		return rtl.Errorf(rtl.ValueError, "Domain '%s' is not present in simulation", cfg.domain)
	}
	if s.clocked[cd] {
		return rtl.Errorf(rtl.ValueError, "Domain '%s' already has a clock driving it", cd.Name)
	}
	if period <= 0 {
		return rtl.Errorf(rtl.ValueError, "Clock period must be positive, not %v", period)
	}
	phase := period / 2
	if cfg.hasPhase {
		phase = cfg.phase + period/2
	}
	p := &clockProcess{tl: &s.tl, s: s.st.slot(cd.Clk), phase: phase, period: period}
	p.reset()
	s.procs = append(s.procs, p)
	s.clocked[cd] = true
	return nil
}

// Reset sets every signal to its reset value and restarts every process.
//
func (s *Simulator) Reset() {
	for _, p := range s.procs {
		if c, ok := p.(*coroProcess); ok {
			c.stop()
		}
	}
	s.tl.reset()
	s.st.reset()
	for _, p := range s.procs {
		p.reset()
	}
}

// step runs delta cycles until the state converges.
func (s *Simulator) step() error {
	var changed []*slot
	defer func() { endInstant(changed) }()
	deltas := 0
	for converged := false; !converged; {
		for _, p := range s.procs {
			if b := p.base(); b.runnable {
				b.runnable = false
				if err := p.run(); err != nil {
					return err
				}
			}
		}
		var n int
		changed, n, converged = s.st.commit(changed)
		deltas++
		if s.metrics != nil {
			s.metrics.deltas.Inc()
			s.metrics.commits.Add(float64(n))
		}
		if s.maxDeltas > 0 && deltas > s.maxDeltas && !converged {
			return errors.Errorf("simulation did not converge after %d delta cycles at %v", s.maxDeltas, s.tl.now)
		}
	}
	if len(s.traces) > 0 && len(changed) > 0 {
		for _, t := range s.traces {
			if err := t.record(s.tl.now, changed); err != nil {
				return err
			}
		}
	}
	return nil
}

// Advance runs every runnable process and commits changes until the state
// converges, then advances time to the nearest deadline. If there is an
// unstable combinational loop, Advance never returns unless RTL_MAX_DELTAS
// is set.
//
// It returns true if any process is still active.
//
func (s *Simulator) Advance() (bool, error) {
	if err := s.step(); err != nil {
		return false, err
	}
	s.tl.advance()
	if s.metrics != nil {
		s.metrics.advances.Inc()
		s.metrics.now.Set(float64(s.tl.now))
	}
	for _, p := range s.procs {
		if !p.base().passive {
			return true, nil
		}
	}
	return false, nil
}

// Run runs the simulation while any process is active.
//
func (s *Simulator) Run() error {
	for {
		active, err := s.Advance()
		if err != nil || !active {
			return err
		}
	}
}

// RunUntil runs the simulation until it advances to deadline. If runPassive
// is false, the simulation also stops when there are no active processes.
//
func (s *Simulator) RunUntil(deadline Time, runPassive bool) error {
	if s.tl.now > deadline {
		return rtl.Errorf(rtl.ValueError, "Simulation engine time is ahead of given deadline! %v > %v", s.tl.now, deadline)
	}
	for {
		active, err := s.Advance()
		if err != nil {
			return err
		}
		if !(active || runPassive) || s.tl.now >= deadline {
			return nil
		}
	}
}

// Close stops every process goroutine and closes trace sessions.
//
func (s *Simulator) Close() error {
	for _, p := range s.procs {
		if c, ok := p.(*coroProcess); ok {
			c.stop()
		}
	}
	var err error
	for _, t := range append([]*TraceSession(nil), s.traces...) {
		if e := t.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// SignalNames returns the display names of every simulated signal, sorted.
//
func (s *Simulator) SignalNames() []string {
	names := make([]string, 0, len(s.st.slots))
	for _, sl := range s.st.slots {
		names = append(names, s.nameOf(sl))
	}
	sort.Strings(names)
	return names
}
