package main

import (
	"errors"
	"time"

	"github.com/harveysanders/picoclock/rtcclock/refresh"
)

// halfPeriod can be set at link time, e.g.
//
//	tinygo flash -target=pico -ldflags="-X main.halfPeriod=250ms" ./rtcclock
var halfPeriod string

// LCD glass. A 20x4 module fits a whole date and time on one row.
const (
	lcdWidth  = 20
	lcdHeight = 4
)

// refreshHalfPeriod returns the link-time half period, or the default when
// none was given. An unusable value is reported along with the default so
// the caller can log it.
func refreshHalfPeriod() (time.Duration, error) {
	if halfPeriod == "" {
		return refresh.DefaultHalfPeriod, nil
	}
	d, err := time.ParseDuration(halfPeriod)
	if err != nil {
		return refresh.DefaultHalfPeriod, errors.New("half period " + halfPeriod + ": " + err.Error())
	}
	if d <= 0 {
		return refresh.DefaultHalfPeriod, errors.New("half period " + halfPeriod + ": must be positive")
	}
	return d, nil
}

// sleeper is the board's blocking delay source.
type sleeper struct{}

func (sleeper) Sleep(d time.Duration) { time.Sleep(d) }
