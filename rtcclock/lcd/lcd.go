// Package lcd drives an HD44780-compatible character LCD over a 4-bit
// parallel bus: four data lines (D4..D7), register select and enable. The
// read/write line is expected to be tied to ground, so the busy flag is never
// polled and every instruction is followed by a fixed worst-case delay.
//
// Example usage:
//
//	d := lcd.New([4]lcd.Pin{machine.GP18, machine.GP19, machine.GP20, machine.GP21},
//		machine.GP16, machine.GP17, lcd.DelayFunc(time.Sleep))
//	if err := d.Configure(lcd.Config{Width: 20, Height: 4}); err != nil {
//		// wiring problem
//	}
//	d.SetDisplayMode(lcd.DisplayMode{Display: true})
//	d.Clear()
//	d.WriteText("hello")
package lcd

import (
	"errors"
	"time"
)

var (
	ErrNotInitialized  = errors.New("lcd: not initialized")
	ErrNoPin           = errors.New("lcd: nil pin")
	ErrInvalidConfig   = errors.New("lcd: unsupported geometry")
	ErrInvalidPosition = errors.New("lcd: cursor position out of range")
)

// Controller timing from the HD44780U datasheet, rounded up. These are
// properties of the chip and are not meant to be tuned.
const (
	powerOnDelay   = 50 * time.Millisecond  // >40ms after Vcc reaches 2.7V
	initDelayLong  = 5 * time.Millisecond   // >4.1ms after the first 8-bit function set
	initDelayShort = 150 * time.Microsecond // >100us after the second
	commandDelay   = 50 * time.Microsecond  // >37us for most instructions and data writes
	clearDelay     = 2 * time.Millisecond   // >1.52ms for clear and return home
	enablePulse    = 1 * time.Microsecond   // >450ns high, >450ns low
)

// Instruction set.
const (
	cmdClear          = 0x01
	cmdHome           = 0x02
	cmdEntryMode      = 0x04
	cmdDisplayControl = 0x08
	cmdFunctionSet    = 0x20
	cmdSetDDRAM       = 0x80

	entryIncrement = 0x02

	displayOn = 0x04
	cursorOn  = 0x02
	blinkOn   = 0x01

	function2Line = 0x08
)

// Pin is a digital output line. machine.Pin satisfies it.
type Pin interface {
	Set(high bool)
}

// Delayer blocks the caller for at least d.
type Delayer interface {
	Sleep(d time.Duration)
}

// DelayFunc adapts a function such as time.Sleep to a Delayer.
type DelayFunc func(d time.Duration)

func (f DelayFunc) Sleep(d time.Duration) { f(d) }

// Config describes the glass attached to the controller.
type Config struct {
	Width  int // characters per row, 16 if zero
	Height int // rows: 1, 2 or 4; 2 if zero
}

// DisplayMode is the argument of the display control instruction.
type DisplayMode struct {
	Display bool // display on
	Cursor  bool // underline cursor visible
	Blink   bool // blinking block cursor
}

// Device is an HD44780 on a 4-bit bus.
type Device struct {
	data  [4]Pin // D4..D7
	rs, e Pin
	delay Delayer

	width, height int
	mode          DisplayMode
	configured    bool
}

// New returns a Device for the given lines. It does not touch the hardware;
// Configure must be called before any other method.
func New(data [4]Pin, rs, e Pin, delay Delayer) *Device {
	return &Device{
		data:  data,
		rs:    rs,
		e:     e,
		delay: delay,
	}
}

// Configure runs the initialization-by-instruction sequence that puts the
// controller into 4-bit mode regardless of its state at power up. When it
// returns the display is cleared and off, the cursor is at home and the
// entry mode is left-to-right without shift.
func (d *Device) Configure(cfg Config) error {
	for _, p := range d.data {
		if p == nil {
			return ErrNoPin
		}
	}
	if d.rs == nil || d.e == nil || d.delay == nil {
		return ErrNoPin
	}
	if cfg.Width == 0 {
		cfg.Width = 16
	}
	if cfg.Height == 0 {
		cfg.Height = 2
	}
	if cfg.Width < 0 || cfg.Width > 40 {
		return ErrInvalidConfig
	}
	switch cfg.Height {
	case 1, 2:
	case 4:
		if cfg.Width > 20 {
			return ErrInvalidConfig
		}
	default:
		return ErrInvalidConfig
	}
	d.width, d.height = cfg.Width, cfg.Height

	d.delay.Sleep(powerOnDelay)

	// The controller may be in 8-bit mode or halfway through a 4-bit
	// transfer. Three 8-bit function sets resynchronise it, then the
	// fourth selects the 4-bit interface.
	d.rs.Set(false)
	d.writeNibble(0x3)
	d.delay.Sleep(initDelayLong)
	d.writeNibble(0x3)
	d.delay.Sleep(initDelayShort)
	d.writeNibble(0x3)
	d.delay.Sleep(initDelayShort)
	d.writeNibble(0x2)
	d.delay.Sleep(initDelayShort)

	function := byte(cmdFunctionSet)
	if d.height > 1 {
		function |= function2Line
	}
	d.command(function)
	d.command(cmdDisplayControl)
	d.command(cmdClear)
	d.delay.Sleep(clearDelay)
	d.command(cmdEntryMode | entryIncrement)

	d.mode = DisplayMode{}
	d.configured = true
	return nil
}

// SetDisplayMode turns the whole display, the cursor and cursor blinking on
// or off.
func (d *Device) SetDisplayMode(mode DisplayMode) error {
	if !d.configured {
		return ErrNotInitialized
	}
	c := byte(cmdDisplayControl)
	if mode.Display {
		c |= displayOn
	}
	if mode.Cursor {
		c |= cursorOn
	}
	if mode.Blink {
		c |= blinkOn
	}
	d.command(c)
	d.mode = mode
	return nil
}

// Mode returns the display mode last set.
func (d *Device) Mode() DisplayMode { return d.mode }

// Clear blanks the display RAM and homes the cursor. It returns after the
// controller has finished, so text may be written immediately.
func (d *Device) Clear() error {
	if !d.configured {
		return ErrNotInitialized
	}
	d.command(cmdClear)
	d.delay.Sleep(clearDelay)
	return nil
}

// Home moves the cursor to the first position of the first row without
// touching display RAM.
func (d *Device) Home() error {
	if !d.configured {
		return ErrNotInitialized
	}
	d.command(cmdHome)
	d.delay.Sleep(clearDelay)
	return nil
}

// SetCursor moves the cursor to col, row (both zero based).
func (d *Device) SetCursor(col, row int) error {
	if !d.configured {
		return ErrNotInitialized
	}
	if col < 0 || col >= d.width || row < 0 || row >= d.height {
		return ErrInvalidPosition
	}
	d.command(cmdSetDDRAM | (rowOffset(row, d.width) + byte(col)))
	return nil
}

// rowOffset is the display RAM address of the first character of row.
// Rows 2 and 3 of a four-row display continue rows 0 and 1.
func rowOffset(row, width int) byte {
	switch row {
	case 1:
		return 0x40
	case 2:
		return byte(width)
	case 3:
		return 0x40 + byte(width)
	}
	return 0x00
}

// Command sends a raw instruction byte.
func (d *Device) Command(c byte) error {
	if !d.configured {
		return ErrNotInitialized
	}
	d.command(c)
	return nil
}

// Write sends p to display RAM at the cursor. The cursor is never moved
// between rows; characters past the end of a row land in RAM that is not
// visible. Write implements io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	if !d.configured {
		return 0, ErrNotInitialized
	}
	for _, b := range p {
		d.send(b, true)
	}
	return len(p), nil
}

// WriteText is Write for a string. Bytes are sent as-is, so text should be
// limited to the controller's character ROM (ASCII for the A00 ROM).
func (d *Device) WriteText(text string) error {
	if !d.configured {
		return ErrNotInitialized
	}
	for i := 0; i < len(text); i++ {
		d.send(text[i], true)
	}
	return nil
}

func (d *Device) command(c byte) {
	d.send(c, false)
}

// send transfers one byte as two nibbles, high nibble first, and waits for
// the controller to finish executing it.
func (d *Device) send(b byte, data bool) {
	d.rs.Set(data)
	d.writeNibble(b >> 4)
	d.writeNibble(b & 0x0F)
	d.delay.Sleep(commandDelay)
}

// writeNibble drives the low four bits of n onto D4..D7 and latches them
// with a pulse on the enable line. The controller samples on the falling
// edge.
func (d *Device) writeNibble(n byte) {
	for i, p := range d.data {
		p.Set(n&(1<<i) != 0)
	}
	d.e.Set(true)
	d.delay.Sleep(enablePulse)
	d.e.Set(false)
	d.delay.Sleep(enablePulse)
}
