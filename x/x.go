/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package x holds small helpers shared by every other package in this
// module. Some common use cases are:
//
//	(1) You hit a condition that can only mean a programmer error, never a
//	    data error. Use x.AssertTrue / x.AssertTruef. Data errors must go
//	    through normal error returns instead; nothing in this module is
//	    allowed to take the process down over bad geometry.
//	(2) You are filling in a *Ms metrics field. Use x.SinceMs.
package x

import (
	"fmt"
	"time"
)

// AssertTrue panics if b is false. Reserved for invariants that cannot be
// violated by caller input.
func AssertTrue(b bool) {
	if !b {
		panic("assertion failed")
	}
}

// AssertTruef is AssertTrue with extra info.
func AssertTruef(b bool, format string, args ...interface{}) {
	if !b {
		panic(fmt.Sprintf(format, args...))
	}
}

// SinceMs returns the elapsed time since start in fractional milliseconds.
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
