// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package diag reports non-fatal, source-location tagged warnings.
//
package diag

import (
	"fmt"
	"os"
	"sync"

	"github.com/db47h/rtl/internal/config"
	"github.com/sirupsen/logrus"
)

// Warning categories.
//
const (
	ShapeWarning   = "ShapeWarning"
	SyntaxWarning  = "SyntaxWarning"
	UnusedProperty = "UnusedProperty"
	DriverConflict = "DriverConflict"
	Unreachable    = "UnreachablePattern"
)

var (
	once sync.Once
	log  *logrus.Logger
)

// Logger returns the logger used for diagnostics.
//
func Logger() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()
		log.Out = os.Stderr
		log.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
		lvl, err := logrus.ParseLevel(config.Load().Warnings)
		if err != nil {
			lvl = logrus.WarnLevel
		}
		log.SetLevel(lvl)
	})
	return log
}

// Warnf logs a warning of the given category at source location loc
// ("file:line", may be empty).
//
func Warnf(category, loc, format string, args ...interface{}) {
	e := Logger().WithField("category", category)
	if loc != "" {
		e = e.WithField("loc", loc)
	}
	e.Warn(fmt.Sprintf(format, args...))
}
