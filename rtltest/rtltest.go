// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package rtltest provides utility functions for testing designs.
//
package rtltest

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/internal/diag"
	"github.com/db47h/rtl/sim"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Period is the clock period used by Simulate and CompareParts.
//
const Period = sim.Microsecond

// CaptureWarnings records the diagnostics emitted until the end of the
// test.
//
func CaptureWarnings(t testing.TB) *test.Hook {
	t.Helper()
	l := diag.Logger()
	old := l.ReplaceHooks(make(logrus.LevelHooks))
	h := test.NewLocal(l)
	t.Cleanup(func() { l.ReplaceHooks(old) })
	return h
}

// Warnings returns the messages of the recorded warnings of the given
// category. An empty category matches all warnings.
//
func Warnings(h *test.Hook, category string) []string {
	var msgs []string
	for _, e := range h.AllEntries() {
		if e.Level != logrus.WarnLevel {
			continue
		}
		if c, _ := e.Data["category"].(string); category == "" || c == category {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// Simulate runs the given processes against design. A clock of period
// Period drives the "sync" domain if it exists. The test fails if the
// simulation returns an error.
//
func Simulate(t testing.TB, design rtl.Elaboratable, procs ...func(ctx *sim.Ctx)) *sim.Simulator {
	t.Helper()
	s, err := sim.New(design)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err = s.AddClock(Period, sim.IfExists()); err != nil {
		t.Fatal(err)
	}
	for _, p := range procs {
		s.AddProcess(p)
	}
	if err = s.Run(); err != nil {
		t.Fatal(err)
	}
	return s
}

type portPair struct {
	name   string
	p1, p2 *rtl.Signal
}

func matchPorts(t testing.TB, part1, part2 rtl.Elaboratable) (ins, outs []portPair) {
	t.Helper()
	ps1, err := rtl.PortsOf(part1)
	if err != nil {
		t.Fatal(err)
	}
	ps2, err := rtl.PortsOf(part2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps1) != len(ps2) {
		t.Fatalf("len(ps1) = %d != len(ps2) = %d", len(ps1), len(ps2))
	}
	for i, p1 := range ps1 {
		p2 := ps2[i]
		if p1.Name != p2.Name || p1.Dir != p2.Dir {
			t.Fatalf("port %d: %s %q != %s %q", i, p1.Dir, p1.Name, p2.Dir, p2.Name)
		}
		if s1, s2 := p1.Signal.Shape(), p2.Signal.Shape(); s1 != s2 {
			t.Fatalf("port %q: shape %v != %v", p1.Name, s1, s2)
		}
		pp := portPair{p1.Name, p1.Signal, p2.Signal}
		if p1.Dir == rtl.In {
			ins = append(ins, pp)
		} else {
			outs = append(outs, pp)
		}
	}
	return ins, outs
}

// CompareParts drives the inputs of part1 and part2 with the same values
// and compares their outputs. Both parts must have the same ports, in the
// same order. Inputs are all zeroes, then all ones, then iter random
// values. Each input set is held for a clock period.
//
func CompareParts(t testing.TB, iter int, part1, part2 rtl.Elaboratable) {
	t.Helper()
	ins, outs := matchPorts(t, part1, part2)

	m := rtl.NewModule()
	m.Submodule("part1", part1)
	m.Submodule("part2", part2)

	seed := time.Now().UnixNano()
	rnd := rand.New(rand.NewSource(seed))
	vals := make([]int64, len(ins))

	errString := func(o portPair, v1, v2 int64) string {
		var b strings.Builder
		for i, in := range ins {
			if b.Len() > 0 {
				b.WriteString(", ")
			}
			b.WriteString(in.name + "=" + in.p1.Format(vals[i]))
		}
		return "\nExpected " + b.String() + " => " + o.name + "=" + o.p1.Format(v1) + "\nGot " + o.p2.Format(v2)
	}

	start := time.Now()
	s := Simulate(t, m, func(ctx *sim.Ctx) {
		for i := -2; i < iter; i++ {
			for k, in := range ins {
				switch i {
				case -2:
					vals[k] = 0
				case -1:
					vals[k] = -1
				default:
					vals[k] = rnd.Int63()
				}
				vals[k] = rtl.Normalize(vals[k], in.p1.Shape())
				ctx.Set(in.p1, vals[k])
				ctx.Set(in.p2, vals[k])
			}
			ctx.Delay(Period)
			for _, o := range outs {
				if v1, v2 := ctx.Get(o.p1), ctx.Get(o.p2); v1 != v2 {
					t.Errorf("seed %d: %s", seed, errString(o, v1, v2))
					return
				}
			}
		}
	})
	t.Logf("%d input sets in %v (%v simulated)", iter+2, time.Since(start), s.Now())
}
