/*
Package rtl provides the necessary tools to describe digital logic using Go
as a hardware description language, elaborate it and simulate it.

Designs are built from values (signals, constants and expressions over them)
whose bit width and signedness is computed statically. Assignments are
grouped into clock domains: statements in the comb domain describe
combinational logic, statements in any other domain update registers on the
active edge of that domain's clock.

Components implement Elaboratable. Their Elaborate method returns another
Elaboratable, usually a *Module built with its control flow helpers (If,
Switch, FSM), until a *Fragment is reached:

	type counter struct {
		Count *rtl.Signal `rtl:"out"`
	}

	func (c *counter) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
		m := rtl.NewModule()
		m.Sync(rtl.Inc(c.Count, 1))
		return m, nil
	}

Prepare turns a hierarchy of fragments into a validated graph: clock domains
are propagated and lowered, missing domains created, driver conflicts
flattened and ports inferred. A prepared fragment can then be handed to the
simulator in the sim sub-package.

Errors raised while building a design are reported as *Error values with a
Kind describing the class of error. Warnings are logged through logrus.

*/
package rtl
