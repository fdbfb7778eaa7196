// Package lcdsim simulates an HD44780 controller wired for a 4-bit bus. It
// is driven by pin edges exactly as the real chip is, keeps its own virtual
// clock (advanced through Sleep) and records any transfer that arrives
// while the controller is still busy or with a too-short enable pulse.
package lcdsim

import (
	"strings"
	"time"
)

// Execution times from the HD44780U datasheet at 270kHz.
const (
	powerOnBusy  = 40 * time.Millisecond
	firstInit    = 4100 * time.Microsecond
	secondInit   = 100 * time.Microsecond
	commandBusy  = 37 * time.Microsecond
	dataBusy     = 41 * time.Microsecond // 37us + tADD
	clearBusy    = 1520 * time.Microsecond
	minHighPulse = 450 * time.Nanosecond
)

const (
	pinD4 = iota
	pinD5
	pinD6
	pinD7
	pinRS
	pinE
	numPins
)

// Pin is one simulated line into the controller. It satisfies lcd.Pin.
type Pin struct {
	c     *Controller
	id    int
	level bool
}

// Set drives the line.
func (p *Pin) Set(high bool) {
	p.c.pinChanged(p.id, high)
	p.level = high
}

// Controller is a simulated HD44780. The zero value is not usable; use New.
type Controller struct {
	cols, rows int
	pins       [numPins]*Pin

	elapsed   time.Duration
	busyUntil time.Duration
	enableAt  time.Duration

	fourBit   bool
	pending   bool
	high      byte
	initSteps int

	ddram     [0x80]byte
	addr      byte
	increment bool
	twoLine   bool

	displayOn, cursorOn, blinkOn bool

	instructions []byte
	violations   []string
}

// New returns a controller in its power-on state behind a cols x rows glass.
func New(cols, rows int) *Controller {
	c := &Controller{
		cols:      cols,
		rows:      rows,
		busyUntil: powerOnBusy,
		increment: true,
	}
	for i := range c.pins {
		c.pins[i] = &Pin{c: c, id: i}
	}
	for i := range c.ddram {
		c.ddram[i] = ' '
	}
	return c
}

// Pins returns the lines D4..D7, RS and E.
func (c *Controller) Pins() (data [4]*Pin, rs, e *Pin) {
	return [4]*Pin{c.pins[pinD4], c.pins[pinD5], c.pins[pinD6], c.pins[pinD7]},
		c.pins[pinRS], c.pins[pinE]
}

// Sleep advances the controller's clock. Passing the controller as the
// driver's delay source makes every wait the driver performs visible to the
// simulation.
func (c *Controller) Sleep(d time.Duration) {
	c.elapsed += d
}

// Elapsed is the virtual time since power on.
func (c *Controller) Elapsed() time.Duration { return c.elapsed }

// FourBit reports whether the 4-bit interface has been selected.
func (c *Controller) FourBit() bool { return c.fourBit }

// TwoLine reports the N bit of the last function set.
func (c *Controller) TwoLine() bool { return c.twoLine }

func (c *Controller) DisplayOn() bool { return c.displayOn }
func (c *Controller) CursorOn() bool  { return c.cursorOn }
func (c *Controller) BlinkOn() bool   { return c.blinkOn }

// Address is the current display RAM address.
func (c *Controller) Address() byte { return c.addr }

// Instructions returns every instruction byte executed, in order.
func (c *Controller) Instructions() []byte {
	return append([]byte(nil), c.instructions...)
}

// Violations returns a description of every timing violation seen.
func (c *Controller) Violations() []string {
	return append([]string(nil), c.violations...)
}

// Line returns the display RAM shown on row, whether or not the display is
// switched on.
func (c *Controller) Line(row int) string {
	if row < 0 || row >= c.rows {
		return ""
	}
	var base int
	switch row {
	case 1:
		base = 0x40
	case 2:
		base = c.cols
	case 3:
		base = 0x40 + c.cols
	}
	return string(c.ddram[base : base+c.cols])
}

// Frame returns what a person looking at the glass would see: every row,
// or blank rows when the display is off.
func (c *Controller) Frame() []string {
	frame := make([]string, c.rows)
	for i := range frame {
		if c.displayOn {
			frame[i] = c.Line(i)
		} else {
			frame[i] = strings.Repeat(" ", c.cols)
		}
	}
	return frame
}

// String renders the frame with a border, one row per line.
func (c *Controller) String() string {
	var sb strings.Builder
	edge := "+" + strings.Repeat("-", c.cols) + "+\n"
	sb.WriteString(edge)
	for _, l := range c.Frame() {
		sb.WriteString("|" + l + "|\n")
	}
	sb.WriteString(edge)
	return sb.String()
}

func (c *Controller) pinChanged(id int, high bool) {
	if id != pinE {
		return
	}
	e := c.pins[pinE].level
	switch {
	case !e && high:
		c.enableAt = c.elapsed
	case e && !high:
		c.latch()
	}
}

func (c *Controller) violate(msg string) {
	c.violations = append(c.violations, c.elapsed.String()+": "+msg)
}

// latch samples D4..D7 and RS on the falling edge of E.
func (c *Controller) latch() {
	if c.elapsed-c.enableAt < minHighPulse {
		c.violate("enable pulse too short")
	}
	if c.elapsed < c.busyUntil {
		c.violate("transfer while busy")
	}
	var nibble byte
	for i := pinD4; i <= pinD7; i++ {
		if c.pins[i].level {
			nibble |= 1 << i
		}
	}
	rs := c.pins[pinRS].level

	if !c.fourBit {
		// DB0..DB3 are not connected and read as zero.
		c.execute(rs, nibble<<4)
		return
	}
	if !c.pending {
		c.high = nibble
		c.pending = true
		return
	}
	c.pending = false
	c.execute(rs, c.high<<4|nibble)
}

func (c *Controller) execute(rs bool, b byte) {
	if rs {
		c.ddram[c.addr&0x7F] = b
		c.step(c.increment)
		c.busyUntil = c.elapsed + dataBusy
		return
	}

	c.instructions = append(c.instructions, b)
	busy := commandBusy
	switch {
	case b&0x80 != 0:
		c.addr = b & 0x7F
	case b&0x40 != 0:
		// character generator RAM is not modelled
	case b&0x20 != 0:
		c.fourBit = b&0x10 == 0
		c.twoLine = b&0x08 != 0
		if !c.fourBit {
			c.initSteps++
			switch c.initSteps {
			case 1:
				busy = firstInit
			case 2:
				busy = secondInit
			}
		}
	case b&0x10 != 0:
		// display shift is not modelled, cursor shift is
		if b&0x08 == 0 {
			c.step(b&0x04 != 0)
		}
	case b&0x08 != 0:
		c.displayOn = b&0x04 != 0
		c.cursorOn = b&0x02 != 0
		c.blinkOn = b&0x01 != 0
	case b&0x04 != 0:
		c.increment = b&0x02 != 0
	case b&0x02 != 0:
		c.addr = 0
		busy = clearBusy
	case b&0x01 != 0:
		for i := range c.ddram {
			c.ddram[i] = ' '
		}
		c.addr = 0
		c.increment = true
		busy = clearBusy
	}
	c.busyUntil = c.elapsed + busy
}

// step moves the address counter one position, wrapping the way the
// controller does: 0x00-0x27 and 0x40-0x67 in two-line mode, 0x00-0x4F
// otherwise.
func (c *Controller) step(forward bool) {
	if forward {
		c.addr++
	} else {
		c.addr--
	}
	if c.twoLine {
		switch {
		case forward && c.addr == 0x28:
			c.addr = 0x40
		case forward && c.addr == 0x68:
			c.addr = 0x00
		case !forward && c.addr == 0xFF:
			c.addr = 0x67
		case !forward && c.addr == 0x3F:
			c.addr = 0x27
		}
		return
	}
	switch {
	case forward && c.addr == 0x50:
		c.addr = 0x00
	case !forward && c.addr == 0xFF:
		c.addr = 0x4F
	}
}
