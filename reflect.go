// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PortSpec describes a port found by PortsOf.
//
type PortSpec struct {
	Name   string
	Dir    PortDir
	Signal *Signal
}

var signalType = reflect.TypeOf((*Signal)(nil))

// PortsOf returns the ports of a component struct, identified by field tags.
//
// The field tag must be `rtl:"in"`, `rtl:"out"` or `rtl:"inout"`. By default,
// the port name is the field name in lowercase. A specific name can be
// forced by adding it in the tag: `rtl:"in,port_name"`.
//
// Fields must be *Signal, or arrays or slices of *Signal. Nil signals are
// skipped.
//
func PortsOf(obj interface{}) ([]PortSpec, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.Errorf("nil %s", v.Type())
		}
		v = v.Elem()
	}
	typ := v.Type()
	if k := typ.Kind(); k != reflect.Struct {
		return nil, errors.Errorf("unsupported type %q for %q", k, typ.Name())
	}

	var ps []PortSpec
	n := typ.NumField()
	for i := 0; i < n; i++ {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("rtl")
		if !ok {
			continue
		}
		name := strings.ToLower(f.Name)
		tv := strings.Split(tag, ",")
		if len(tv) > 2 {
			return nil, errors.Errorf("unsupported tag %q for field %q in %q", tag, f.Name, typ.Name())
		}
		if len(tv) == 2 && tv[1] != "" {
			name = tv[1]
		}
		var dir PortDir
		switch tv[0] {
		case "in":
			dir = In
		case "out":
			dir = Out
		case "inout":
			dir = InOut
		default:
			return nil, errors.Errorf("unsupported tag %q for field %q in %q", tag, f.Name, typ.Name())
		}

		fv := v.Field(i)
		switch k := f.Type.Kind(); {
		case f.Type == signalType:
			if s := fv.Interface().(*Signal); s != nil {
				ps = append(ps, PortSpec{name, dir, s})
			}
		case (k == reflect.Array || k == reflect.Slice) && f.Type.Elem() == signalType:
			// bus
			for j := 0; j < fv.Len(); j++ {
				if s := fv.Index(j).Interface().(*Signal); s != nil {
					ps = append(ps, PortSpec{name + "[" + strconv.Itoa(j) + "]", dir, s})
				}
			}
		default:
			return nil, errors.Errorf("unsupported type %q for field %q in %q", f.Type, f.Name, typ.Name())
		}
	}
	return ps, nil
}

// PortValues returns the signals of ports, for use with the Ports prepare
// option.
//
func PortValues(ports []PortSpec) []Value {
	vs := make([]Value, 0, len(ports))
	for _, p := range ports {
		vs = append(vs, p.Signal)
	}
	return vs
}
