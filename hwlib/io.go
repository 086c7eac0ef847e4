// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwlib

import (
	"github.com/db47h/rtl"
	"github.com/pkg/errors"
)

// Ports returns the port signals of a component, as found by rtl.PortsOf.
//
func Ports(c rtl.Elaboratable) ([]rtl.Value, error) {
	ps, err := rtl.PortsOf(c)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get ports of %T", c)
	}
	return rtl.PortValues(ps), nil
}

// Prepare prepares a component with its tagged ports as top-level ports.
//
func Prepare(c rtl.Elaboratable, opts ...rtl.PrepareOption) (*rtl.Fragment, error) {
	ports, err := Ports(c)
	if err != nil {
		return nil, err
	}
	return rtl.Prepare(c, append([]rtl.PrepareOption{rtl.Ports(ports...)}, opts...)...)
}
