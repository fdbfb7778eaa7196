//go:build tinygo

package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/harveysanders/picoclock/rtcclock/lcd"
	"github.com/harveysanders/picoclock/rtcclock/refresh"
	"github.com/harveysanders/picoclock/rtcclock/rtc"
)

// Pin map. The LCD's RW line is tied to ground.
const (
	ledPin = machine.LED // GP25

	lcdRS = machine.GP16
	lcdE  = machine.GP17
	lcdD4 = machine.GP18
	lcdD5 = machine.GP19
	lcdD6 = machine.GP20
	lcdD7 = machine.GP21

	rtcSDA = machine.GP2 // I2C1
	rtcSCL = machine.GP3

	i2cFrequency = 400 * machine.KHz
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	outputs := []machine.Pin{ledPin, lcdRS, lcdE, lcdD4, lcdD5, lcdD6, lcdD7}
	for _, p := range outputs {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	err := machine.I2C1.Configure(machine.I2CConfig{
		SDA:       rtcSDA,
		SCL:       rtcSCL,
		Frequency: i2cFrequency,
	})
	if err != nil {
		printErrForever(logger, "configure I2C", slog.Any("reason", err))
	}

	display, err := configureLCD()
	if err != nil {
		printErrForever(logger, "configure LCD", slog.Any("reason", err))
	}

	clock := rtc.New(machine.I2C1)
	valid, err := clock.Start()
	switch {
	case err != nil:
		// not fatal: the loop shows the sentinel until the bus recovers
		logger.Warn("rtc:start-failed", slog.String("reason", err.Error()))
	case !valid:
		logger.Warn("rtc:time-invalid", slog.String("reason", "oscillator stopped since last set"))
	}

	half, err := refreshHalfPeriod()
	if err != nil {
		logger.Warn("config:half-period", slog.String("reason", err.Error()))
	}

	loop, err := refresh.New(refresh.Config{
		LED:        ledPin,
		Display:    display,
		Clock:      clock,
		Delay:      sleeper{},
		Logger:     logger,
		HalfPeriod: half,
	})
	if err != nil {
		printErrForever(logger, "configure refresh loop", slog.Any("reason", err))
	}

	logger.Info("refresh:start", slog.Duration("halfPeriod", half))
	loop.Run()
}

// configureLCD initializes the controller and switches the display on with
// the cursor hidden.
func configureLCD() (*lcd.Device, error) {
	d := lcd.New([4]lcd.Pin{lcdD4, lcdD5, lcdD6, lcdD7}, lcdRS, lcdE, sleeper{})
	err := d.Configure(lcd.Config{
		Width:  lcdWidth,
		Height: lcdHeight,
	})
	if err != nil {
		return nil, err
	}
	err = d.SetDisplayMode(lcd.DisplayMode{Display: true})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// printErrForever prints a message to serial @ 1hz. It blocks forever, so
// a board that failed to start never reaches the refresh loop.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
