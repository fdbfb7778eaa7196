//go:build !tinygo

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harveysanders/picoclock/rtcclock/lcd"
	"github.com/harveysanders/picoclock/rtcclock/lcd/lcdsim"
	"github.com/harveysanders/picoclock/rtcclock/refresh"
	"github.com/harveysanders/picoclock/rtcclock/rtc"
	"github.com/harveysanders/picoclock/rtcclock/rtc/rtcsim"
)

// hostLED logs its level instead of lighting anything.
type hostLED struct {
	logger *slog.Logger
}

func (l hostLED) Set(high bool) {
	l.logger.Debug("led", slog.Bool("high", high))
}

func main() {
	var (
		frames    uint64
		half      time.Duration
		failClock bool
		start     string
		verbose   bool
	)
	defHalf, err := refreshHalfPeriod()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	flag.Uint64Var(&frames, "frames", 0, "Stop after N frames (0 = run forever).")
	flag.DurationVar(&half, "half-period", defHalf, "Time the LED spends on, then off, per frame.")
	flag.BoolVar(&failClock, "fail-clock", false, "Make every RTC transaction fail.")
	flag.StringVar(&start, "start", "", "RTC start time, RFC 3339 (default: now).")
	flag.BoolVar(&verbose, "v", false, "Log every frame and LED edge.")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctrl := lcdsim.New(lcdWidth, lcdHeight)
	data, rs, e := ctrl.Pins()
	display := lcd.New([4]lcd.Pin{data[0], data[1], data[2], data[3]}, rs, e, ctrl)
	if err := display.Configure(lcd.Config{Width: lcdWidth, Height: lcdHeight}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := display.SetDisplayMode(lcd.DisplayMode{Display: true}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bus := rtcsim.New()
	bus.Follow(time.Now)
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			fmt.Fprintln(os.Stderr, "start:", err)
			os.Exit(2)
		}
		if err := bus.SetTime(t); err != nil {
			fmt.Fprintln(os.Stderr, "start:", err)
			os.Exit(2)
		}
	} else {
		bus.SetTime(time.Now())
	}
	if failClock {
		bus.Fail(rtcsim.ErrNack)
	}

	clock := rtc.New(bus)
	if valid, err := clock.Start(); err != nil {
		logger.Warn("rtc:start-failed", slog.String("reason", err.Error()))
	} else if !valid {
		logger.Warn("rtc:time-invalid")
	}

	loop, err := refresh.New(refresh.Config{
		LED:        hostLED{logger},
		Display:    display,
		Clock:      clock,
		Delay:      sleeper{},
		Logger:     logger,
		HalfPeriod: half,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("refresh:start", slog.Duration("halfPeriod", loop.HalfPeriod()))
	for n := uint64(0); frames == 0 || n < frames; n++ {
		loop.Step()
		fmt.Print(ctrl)
	}
	st := loop.Stats()
	logger.Info("refresh:done",
		slog.Uint64("frames", st.Frames),
		slog.Uint64("clockFailures", st.ClockFailures),
		slog.Uint64("displayFailures", st.DisplayFailures))
}
