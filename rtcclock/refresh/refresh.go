// Package refresh runs the clock's display loop: read the RTC, show the
// time on the LCD and blink the heartbeat LED, once per period, forever.
//
// Example usage:
//
//	loop, err := refresh.New(refresh.Config{
//		LED:     machine.LED,
//		Display: display,
//		Clock:   rtc.New(machine.I2C1),
//		Delay:   delay,
//		Logger:  logger,
//	})
//	if err != nil {
//		// wiring problem
//	}
//	loop.Run()
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harveysanders/picoclock/rtcclock/rtc"
)

// DefaultHalfPeriod is how long the LED stays on, and then off, each frame.
const DefaultHalfPeriod = 500 * time.Millisecond

var ErrInvalidConfig = errors.New("refresh: invalid config")

// LED is the heartbeat output. machine.Pin satisfies it.
type LED interface {
	Set(high bool)
}

// Display is the part of *lcd.Device the loop uses.
type Display interface {
	Home() error
	Clear() error
	Write(p []byte) (int, error)
}

// Clock is the time source. *rtc.Clock satisfies it.
type Clock interface {
	Read() (rtc.DateTime, error)
}

// Delayer blocks the caller for d.
type Delayer interface {
	Sleep(d time.Duration)
}

// Config holds the peripherals the loop takes ownership of.
type Config struct {
	LED     LED
	Display Display
	Clock   Clock
	Delay   Delayer
	Logger  *slog.Logger // discards if nil

	// HalfPeriod is DefaultHalfPeriod if zero.
	HalfPeriod time.Duration
}

// Stats counts what happened since the loop started.
type Stats struct {
	Frames          uint64
	ClockFailures   uint64 // frames that showed rtc.Sentinel
	DisplayFailures uint64 // frames that may not have reached the glass
}

// Loop is the refresh loop. It is not safe for concurrent use; it is meant
// to own the main goroutine.
type Loop struct {
	led     LED
	display Display
	clock   Clock
	delay   Delayer
	logger  *slog.Logger
	half    time.Duration
	stats   Stats
}

// New checks cfg and returns a loop ready to run.
func New(cfg Config) (*Loop, error) {
	if cfg.LED == nil || cfg.Display == nil || cfg.Clock == nil || cfg.Delay == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.HalfPeriod < 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.HalfPeriod == 0 {
		cfg.HalfPeriod = DefaultHalfPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		led:     cfg.LED,
		display: cfg.Display,
		clock:   cfg.Clock,
		delay:   cfg.Delay,
		logger:  cfg.Logger,
		half:    cfg.HalfPeriod,
	}, nil
}

// HalfPeriod is the time the LED spends in each state per frame.
func (l *Loop) HalfPeriod() time.Duration { return l.half }

// Stats returns the counters so far.
func (l *Loop) Stats() Stats { return l.stats }

// Run shows frames until the board is powered off. It never returns.
func (l *Loop) Run() {
	for {
		l.Step()
	}
}

// Step shows one frame. The LED is switched on while the frame is drawn
// and held for one half period, then switched off for another, whatever
// the clock or display did.
func (l *Loop) Step() {
	var buf Buffer

	err := l.display.Home()
	if err == nil {
		err = l.display.Clear()
	}

	l.led.Set(true)

	dt := l.now()
	if ferr := buf.AppendDateTime(dt); ferr != nil {
		// unreachable for a validated reading; show nothing rather than a
		// partial frame
		l.logger.Error("frame:format-failed", slog.String("reason", ferr.Error()))
		buf.Reset()
	}
	if err == nil {
		_, err = l.display.Write(buf.Bytes())
	}
	if err != nil {
		l.stats.DisplayFailures++
		l.logger.Error("display:write-failed", slog.String("reason", err.Error()))
	}
	if l.logger.Enabled(context.Background(), slog.LevelDebug) {
		l.logger.Debug("frame", slog.String("text", buf.String()))
	}

	l.delay.Sleep(l.half)
	l.led.Set(false)
	l.delay.Sleep(l.half)
	l.stats.Frames++
}

// now reads the clock, substituting rtc.Sentinel for anything it cannot
// vouch for.
func (l *Loop) now() rtc.DateTime {
	dt, err := l.clock.Read()
	if err == nil {
		err = dt.Validate()
	}
	if err != nil {
		l.stats.ClockFailures++
		l.logger.Warn("clock:read-failed", slog.String("reason", err.Error()))
		return rtc.Sentinel
	}
	return dt
}
