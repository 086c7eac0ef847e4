// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"strings"
)

// Edge selects the clock edge on which a domain samples its signals.
//
type Edge int

// Clock edges.
//
const (
	PosEdge Edge = iota
	NegEdge
)

func (e Edge) String() string {
	if e == NegEdge {
		return "neg"
	}
	return "pos"
}

// ClockDomain is a synchronous domain: a clock signal, an optional reset
// signal and their configuration.
//
type ClockDomain struct {
	Name       string
	Clk        *Signal
	Rst        *Signal // nil for reset-less domains
	ClkEdge    Edge
	AsyncReset bool
	// Local domains only propagate downwards in the design hierarchy.
	Local bool
}

type domainConfig struct {
	edge       Edge
	resetLess  bool
	asyncReset bool
	local      bool
}

// DomainOption configures a clock domain.
//
type DomainOption func(*domainConfig)

// ClkEdge sets the active clock edge.
//
func ClkEdge(e Edge) DomainOption { return func(c *domainConfig) { c.edge = e } }

// NoReset makes a domain reset-less.
//
func NoReset() DomainOption { return func(c *domainConfig) { c.resetLess = true } }

// AsyncReset makes the domain reset asynchronous.
//
func AsyncReset() DomainOption { return func(c *domainConfig) { c.asyncReset = true } }

// LocalDomain restricts domain propagation to the subfragments of the
// fragment defining it.
//
func LocalDomain() DomainOption { return func(c *domainConfig) { c.local = true } }

func domainSignalName(domain, sig string) string {
	if domain == "sync" {
		return sig
	}
	return domain + "_" + sig
}

// NewClockDomain returns a new clock domain. A "cd_" prefix is stripped from
// name. NewClockDomain panics if name is empty or "comb".
//
func NewClockDomain(name string, opts ...DomainOption) *ClockDomain {
	d, err := newClockDomain(name, callerLoc(), opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func newClockDomain(name string, loc SrcLoc, opts ...DomainOption) (*ClockDomain, error) {
	var cfg domainConfig
	for _, o := range opts {
		o(&cfg)
	}
	name = strings.TrimPrefix(name, "cd_")
	if name == "" {
		return nil, Errorf(ValueError, "Clock domain name must be specified explicitly")
	}
	if name == CombDomain {
		return nil, Errorf(ValueError, "Domain '%s' may not be clocked", name)
	}
	cd := &ClockDomain{
		Name:       name,
		Clk:        newSignal(nil, &signalConfig{name: domainSignalName(name, "clk")}, loc),
		ClkEdge:    cfg.edge,
		AsyncReset: cfg.asyncReset,
		Local:      cfg.local,
	}
	if !cfg.resetLess {
		cd.Rst = newSignal(nil, &signalConfig{name: domainSignalName(name, "rst")}, loc)
	}
	return cd, nil
}

// Rename renames the domain and its signals.
//
func (d *ClockDomain) Rename(name string) {
	d.Name = name
	d.Clk.Name = domainSignalName(name, "clk")
	if d.Rst != nil {
		d.Rst.Name = domainSignalName(name, "rst")
	}
}

func (d *ClockDomain) String() string {
	return fmt.Sprintf("(clock-domain '%s' (edge %v) %v)", d.Name, d.ClkEdge, d.Clk)
}
