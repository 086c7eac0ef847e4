// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	deltas   prometheus.Counter
	commits  prometheus.Counter
	advances prometheus.Counter
	now      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtl", Subsystem: "sim", Name: "delta_cycles_total",
			Help: "Number of delta cycles run.",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtl", Subsystem: "sim", Name: "signal_changes_total",
			Help: "Number of committed signal value changes.",
		}),
		advances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtl", Subsystem: "sim", Name: "advances_total",
			Help: "Number of calls to Advance.",
		}),
		now: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtl", Subsystem: "sim", Name: "time_picoseconds",
			Help: "Current simulation time.",
		}),
	}
	for _, c := range []prometheus.Collector{m.deltas, m.commits, m.advances, m.now} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register simulator metrics")
		}
	}
	return m, nil
}
