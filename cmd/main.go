// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"flag"
	"os"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/hwlib"
	"github.com/db47h/rtl/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		cycles = flag.Int("cycles", 20, "number of clock cycles to simulate")
		trace  = flag.String("trace", "", "write a JSON lines trace of every signal change to `file`")
	)
	flag.Parse()
	log := logrus.New()

	// a 4 bit counter that loads 10 when it reaches 3
	counter := hwlib.NewCounter(4)
	m := rtl.NewModule()
	m.Submodule("counter", counter)
	m.Comb(
		rtl.NewAssign(counter.Inc, 1),
		rtl.NewAssign(counter.Load, rtl.Eq(counter.Out, 3)),
		rtl.NewAssign(counter.In, 10),
	)

	reg := prometheus.NewRegistry()
	s, err := sim.New(m, sim.WithLogger(log), sim.WithMetrics(reg))
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	if *trace != "" {
		f, err := os.Create(*trace)
		if err != nil {
			log.Fatal(err)
		}
		if _, err = s.WriteTrace(f, nil); err != nil {
			log.Fatal(err)
		}
	}

	if err = s.AddClock(sim.Microsecond); err != nil {
		log.Fatal(err)
	}
	s.AddSyncProcess(func(ctx *sim.Ctx) {
		for i := 0; i < *cycles; i++ {
			ctx.Yield()
			log.WithField("time", ctx.Now()).Info("count: ", ctx.Get(counter.Out))
		}
	}, "sync")
	if err = s.Run(); err != nil {
		log.Fatal(err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		log.Fatal(err)
	}
	for _, mf := range mfs {
		for _, mt := range mf.GetMetric() {
			v := mt.GetCounter().GetValue()
			if g := mt.GetGauge(); g != nil {
				v = g.GetValue()
			}
			log.WithField("metric", mf.GetName()).Info(v)
		}
	}
}
