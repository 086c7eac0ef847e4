// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package config reads the environment knobs shared by the rtl packages.
//
package config

import (
	"strings"

	"github.com/xyproto/env/v2"
)

// Environment variable names.
//
const (
	EnvSimDump   = "RTL_SIM_DUMP"
	EnvHierarchy = "RTL_HIERARCHY"
	EnvWarnings  = "RTL_WARNINGS"
	EnvMaxDeltas = "RTL_MAX_DELTAS"
)

// Config holds the environment configuration.
//
type Config struct {
	// SimDump enables dumping compiled simulation routines to a temporary
	// file.
	SimDump bool
	// Hierarchy is the default driver conflict resolution mode: "silent",
	// "warn" or "error".
	Hierarchy string
	// Warnings is the logrus level name used for diagnostics.
	Warnings string
	// MaxDeltas bounds the number of delta cycles per simulated instant.
	// 0 means unbounded.
	MaxDeltas int
}

// Load reads the configuration from the environment. The environment is
// read afresh on each call.
//
func Load() Config {
	env.Load()
	c := Config{
		SimDump:   env.Bool(EnvSimDump),
		Hierarchy: strings.ToLower(env.Str(EnvHierarchy, "warn")),
		Warnings:  strings.ToLower(env.Str(EnvWarnings, "warning")),
		MaxDeltas: env.Int(EnvMaxDeltas, 0),
	}
	switch c.Hierarchy {
	case "silent", "warn", "error":
	default:
		c.Hierarchy = "warn"
	}
	if c.MaxDeltas < 0 {
		c.MaxDeltas = 0
	}
	return c
}
