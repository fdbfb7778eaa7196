package refresh_test

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/harveysanders/picoclock/rtcclock/lcd"
	"github.com/harveysanders/picoclock/rtcclock/lcd/lcdsim"
	"github.com/harveysanders/picoclock/rtcclock/refresh"
	"github.com/harveysanders/picoclock/rtcclock/rtc"
	"github.com/harveysanders/picoclock/rtcclock/rtc/rtcsim"
)

// board records every peripheral call against a virtual clock.
type board struct {
	now    time.Duration
	events []string
	edges  []edge

	readings []reading
	reads    int

	text       string
	displayErr error
}

type edge struct {
	At   time.Duration
	High bool
}

type reading struct {
	dt  rtc.DateTime
	err error
}

type led struct{ b *board }

func (l led) Set(high bool) {
	l.b.edges = append(l.b.edges, edge{l.b.now, high})
	if high {
		l.b.events = append(l.b.events, "led high")
	} else {
		l.b.events = append(l.b.events, "led low")
	}
}

type delay struct{ b *board }

func (d delay) Sleep(dur time.Duration) {
	d.b.now += dur
	d.b.events = append(d.b.events, "sleep "+dur.String())
}

type display struct{ b *board }

func (d display) Home() error {
	d.b.events = append(d.b.events, "home")
	return d.b.displayErr
}

func (d display) Clear() error {
	d.b.events = append(d.b.events, "clear")
	if d.b.displayErr == nil {
		d.b.text = ""
	}
	return d.b.displayErr
}

func (d display) Write(p []byte) (int, error) {
	d.b.events = append(d.b.events, "write")
	if d.b.displayErr != nil {
		return 0, d.b.displayErr
	}
	d.b.text += string(p)
	return len(p), nil
}

type clock struct{ b *board }

func (c clock) Read() (rtc.DateTime, error) {
	c.b.events = append(c.b.events, "read")
	r := c.b.readings[c.b.reads%len(c.b.readings)]
	c.b.reads++
	return r.dt, r.err
}

func newLoop(c *qt.C, readings ...reading) (*refresh.Loop, *board) {
	b := &board{readings: readings}
	loop, err := refresh.New(refresh.Config{
		LED:     led{b},
		Display: display{b},
		Clock:   clock{b},
		Delay:   delay{b},
	})
	c.Assert(err, qt.IsNil)
	return loop, b
}

var (
	june15  = rtc.DateTime{Year: 2023, Month: time.June, Day: 15, Hour: 10, Minute: 30}
	errNack = errors.New("nack")
)

func TestStepOrder(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c, reading{dt: june15})

	loop.Step()

	c.Assert(b.events, qt.DeepEquals, []string{
		"home", "clear", "led high", "read", "write",
		"sleep 500ms", "led low", "sleep 500ms",
	})
}

func TestStepShowsReading(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c, reading{dt: june15})

	loop.Step()
	c.Assert(b.text, qt.Equals, "2023-06-15 10:30:00")
	loop.Step()
	c.Assert(b.text, qt.Equals, "2023-06-15 10:30:00")

	// high, low, high over the following second
	c.Assert(b.edges, qt.DeepEquals, []edge{
		{0, true},
		{500 * time.Millisecond, false},
		{1000 * time.Millisecond, true},
		{1500 * time.Millisecond, false},
	})
	c.Assert(loop.Stats(), qt.Equals, refresh.Stats{Frames: 2})
}

func TestStepFallsBackToSentinel(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c, reading{err: errNack})

	for i := 0; i < 3; i++ {
		loop.Step()
		c.Assert(b.text, qt.Equals, "1900-01-01 00:00:00")
	}
	c.Assert(loop.Stats(), qt.Equals, refresh.Stats{Frames: 3, ClockFailures: 3})
}

func TestStepNeverShowsStaleReading(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c,
		reading{dt: june15},
		reading{err: errNack},
		reading{dt: june15},
	)

	want := []string{"2023-06-15 10:30:00", "1900-01-01 00:00:00", "2023-06-15 10:30:00"}
	for _, w := range want {
		loop.Step()
		c.Assert(b.text, qt.Equals, w)
	}
}

func TestStepRejectsInvalidReading(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c, reading{dt: rtc.DateTime{Year: 2023, Month: 13, Day: 1}})

	loop.Step()
	c.Assert(b.text, qt.Equals, "1900-01-01 00:00:00")
	c.Assert(loop.Stats().ClockFailures, qt.Equals, uint64(1))
}

func TestLEDDutyCycle(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c,
		reading{dt: june15},
		reading{err: errNack},
		reading{err: errNack},
		reading{dt: june15},
	)

	const frames = 8
	for i := 0; i < frames; i++ {
		loop.Step()
	}

	c.Assert(b.edges, qt.HasLen, 2*frames)
	for i := 0; i < len(b.edges); i += 2 {
		on, off := b.edges[i], b.edges[i+1]
		c.Assert(on.High, qt.IsTrue)
		c.Assert(off.High, qt.IsFalse)
		c.Assert(off.At-on.At, qt.Equals, 500*time.Millisecond)
		if i+2 < len(b.edges) {
			c.Assert(b.edges[i+2].At-off.At, qt.Equals, 500*time.Millisecond)
		}
	}
	c.Assert(b.now, qt.Equals, frames*time.Second)
}

func TestDisplayFailuresAreCounted(t *testing.T) {
	c := qt.New(t)
	loop, b := newLoop(c, reading{dt: june15})
	b.displayErr = errors.New("lcd: not initialized")

	loop.Step()
	loop.Step()

	c.Assert(loop.Stats(), qt.Equals, refresh.Stats{Frames: 2, DisplayFailures: 2})
	// the heartbeat carries on
	c.Assert(b.edges, qt.HasLen, 4)
	c.Assert(b.now, qt.Equals, 2*time.Second)

	b.displayErr = nil
	loop.Step()
	c.Assert(b.text, qt.Equals, "2023-06-15 10:30:00")
	c.Assert(loop.Stats().DisplayFailures, qt.Equals, uint64(2))
}

func TestNew(t *testing.T) {
	b := &board{readings: []reading{{dt: june15}}}
	valid := refresh.Config{LED: led{b}, Display: display{b}, Clock: clock{b}, Delay: delay{b}}

	tests := []struct {
		name   string
		modify func(*refresh.Config)
		want   time.Duration
		err    error
	}{
		{"default half period", func(*refresh.Config) {}, refresh.DefaultHalfPeriod, nil},
		{"custom half period", func(cfg *refresh.Config) { cfg.HalfPeriod = 250 * time.Millisecond }, 250 * time.Millisecond, nil},
		{"negative half period", func(cfg *refresh.Config) { cfg.HalfPeriod = -time.Second }, 0, refresh.ErrInvalidConfig},
		{"no led", func(cfg *refresh.Config) { cfg.LED = nil }, 0, refresh.ErrInvalidConfig},
		{"no display", func(cfg *refresh.Config) { cfg.Display = nil }, 0, refresh.ErrInvalidConfig},
		{"no clock", func(cfg *refresh.Config) { cfg.Clock = nil }, 0, refresh.ErrInvalidConfig},
		{"no delay", func(cfg *refresh.Config) { cfg.Delay = nil }, 0, refresh.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			cfg := valid
			tt.modify(&cfg)
			loop, err := refresh.New(cfg)
			if tt.err != nil {
				c.Assert(err, qt.ErrorIs, tt.err)
				c.Assert(loop, qt.IsNil)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(loop.HalfPeriod(), qt.Equals, tt.want)
		})
	}
}

// TestLoopOnSimulatedBoard runs the real drivers against simulated
// peripherals.
func TestLoopOnSimulatedBoard(t *testing.T) {
	c := qt.New(t)

	ctrl := lcdsim.New(20, 4)
	data, rs, e := ctrl.Pins()
	d := lcd.New([4]lcd.Pin{data[0], data[1], data[2], data[3]}, rs, e, ctrl)
	c.Assert(d.Configure(lcd.Config{Width: 20, Height: 4}), qt.IsNil)
	c.Assert(d.SetDisplayMode(lcd.DisplayMode{Display: true}), qt.IsNil)

	now := time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC)
	bus := rtcsim.New()
	bus.Follow(func() time.Time { return now })
	c.Assert(bus.SetTime(now), qt.IsNil)

	b := &board{}
	loop, err := refresh.New(refresh.Config{
		LED:     led{b},
		Display: d,
		Clock:   rtc.New(bus),
		Delay: lcd.DelayFunc(func(dur time.Duration) {
			now = now.Add(dur)
			ctrl.Sleep(dur)
		}),
	})
	c.Assert(err, qt.IsNil)

	loop.Step()
	c.Assert(ctrl.Frame()[0], qt.Equals, "2023-06-15 10:30:00 ")
	loop.Step()
	c.Assert(ctrl.Frame()[0], qt.Equals, "2023-06-15 10:30:01 ")

	bus.Fail(rtcsim.ErrNack)
	for i := 0; i < 3; i++ {
		loop.Step()
		c.Assert(ctrl.Frame()[0], qt.Equals, "1900-01-01 00:00:00 ")
	}

	bus.Fail(nil)
	loop.Step()
	c.Assert(ctrl.Frame()[0], qt.Equals, "2023-06-15 10:30:05 ")

	c.Assert(loop.Stats(), qt.Equals, refresh.Stats{Frames: 6, ClockFailures: 3})
	c.Assert(ctrl.Violations(), qt.HasLen, 0)
}
