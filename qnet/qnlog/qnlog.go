// Package qnlog centralizes the per-subsystem logrus loggers used across
// QNet, plus a couple of amount/duration formatting helpers built on
// go-humanize so log lines read in QNC and human time units instead of raw
// nano-QNC integers and nanoseconds.
package qnlog

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/qnet-project/qnet-core/qnet/types"
)

// New returns a package-scoped logger, matching the teacher's
// logrus.WithField("prefix", name) convention.
func New(subsystem string) *logrus.Entry {
	return logrus.WithField("prefix", subsystem)
}

// QNC formats a nano-QNC amount for log/alert output, e.g. "251,432.34 QNC".
func QNC(a types.Amount) string {
	return humanize.CommafWithDigits(a.QNC(), 2) + " QNC"
}

// Duration formats a duration the way operator-facing log lines do.
func Duration(d time.Duration) string {
	return humanize.RelTime(time.Now(), time.Now().Add(d), "", "")
}
