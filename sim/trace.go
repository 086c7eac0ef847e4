// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"bufio"
	"io"

	"github.com/db47h/rtl"
	"github.com/gobwas/glob"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// TraceEvent is a signal value change. Text is set for signals with a
// decoder.
//
type TraceEvent struct {
	Time  Time   `json:"t"`
	Name  string `json:"name"`
	Value int64  `json:"v"`
	Text  string `json:"text,omitempty"`
}

// TraceSession records every committed signal change as a JSON line.
//
type TraceSession struct {
	s      *Simulator
	bw     *bufio.Writer
	enc    *json.Encoder
	out    io.Writer
	save   io.Writer
	traces []string
	closed bool
}

func closeIfCloser(ws ...io.Writer) {
	for _, w := range ws {
		if c, ok := w.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// WriteTrace starts recording signal changes to w. If save is not nil, the
// display names of traces are written to it as a JSON array when the
// session is closed. Writers implementing io.Closer are closed with the
// session.
//
// Recording must start before simulation time advances. The initial value
// of every signal is recorded at time zero.
//
func (s *Simulator) WriteTrace(w io.Writer, save io.Writer, traces ...rtl.Value) (*TraceSession, error) {
	if s.tl.now != 0 {
		closeIfCloser(w, save)
		return nil, rtl.Errorf(rtl.ValueError, "Cannot start writing waveforms after advancing simulation time")
	}
	t := &TraceSession{s: s, out: w, save: save}
	for _, v := range traces {
		sig, ok := v.(*rtl.Signal)
		if !ok {
			closeIfCloser(w, save)
			return nil, rtl.Errorf(rtl.TypeError, "Only signals can be traced, not %v", v)
		}
		t.traces = append(t.traces, s.nameOf(s.st.slot(sig)))
	}
	t.bw = bufio.NewWriter(w)
	t.enc = json.NewEncoder(t.bw)
	if err := t.record(0, s.st.slots); err != nil {
		return nil, err
	}
	s.traces = append(s.traces, t)
	return t, nil
}

func (t *TraceSession) record(now Time, slots []*slot) error {
	for _, sl := range slots {
		ev := TraceEvent{Time: now, Name: t.s.nameOf(sl), Value: sl.curr}
		if sl.sig.Decoder != nil {
			ev.Text = sl.sig.Format(sl.curr)
		}
		if err := t.enc.Encode(&ev); err != nil {
			return errors.Wrap(err, "failed to write trace event")
		}
	}
	return nil
}

// Close flushes the trace, writes the save file and stops recording.
//
func (t *TraceSession) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	for i, o := range t.s.traces {
		if o == t {
			t.s.traces = append(t.s.traces[:i], t.s.traces[i+1:]...)
			break
		}
	}
	err := errors.Wrap(t.bw.Flush(), "failed to flush trace")
	if t.save != nil && err == nil {
		names := t.traces
		if names == nil {
			names = []string{}
		}
		b, e := json.Marshal(names)
		if e == nil {
			_, e = t.save.Write(b)
		}
		err = errors.Wrap(e, "failed to write trace save file")
	}
	closeIfCloser(t.out, t.save)
	return err
}

// TraceSignals returns the signals whose display name matches pattern.
// Display names are dot separated hierarchical names such as
// "top.counter.count". In patterns, '*' does not match dots and '**'
// matches any sequence.
//
func (s *Simulator) TraceSignals(pattern string) ([]rtl.Value, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, errors.Wrapf(err, "invalid signal pattern %q", pattern)
	}
	var sigs []rtl.Value
	for _, sl := range s.st.slots {
		if g.Match(s.nameOf(sl)) {
			sigs = append(sigs, sl.sig)
		}
	}
	return sigs, nil
}
