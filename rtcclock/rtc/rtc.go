// Package rtc reads the calendar time from a DS3231 real-time clock on an
// I2C bus.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/DS3231.pdf
package rtc

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"
)

// ErrInvalidBCD is returned when a timekeeping register holds a nibble
// greater than 9.
var ErrInvalidBCD = errors.New("rtc: invalid BCD in timekeeping registers")

// BusError is returned by every failed Clock operation. Err is the bus
// transport error (NACK, timeout) or the reason the registers could not be
// decoded (ErrInvalidBCD or *RangeError).
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return "rtc " + e.Op + ": " + e.Err.Error()
}

func (e *BusError) Unwrap() error { return e.Err }

// Clock is a DS3231 on an I2C bus that has already been configured.
type Clock struct {
	bus     drivers.I2C
	dev     ds3231.Device
	Address uint16
}

// New returns a Clock for the DS3231 at its fixed address. It does not
// touch the device.
func New(bus drivers.I2C) *Clock {
	return &Clock{
		bus:     bus,
		dev:     ds3231.New(bus),
		Address: ds3231.Address,
	}
}

// Start makes sure the oscillator is running and reports whether the
// timekeeping registers can be trusted. valid is false when the oscillator
// has stopped since the time was last set, e.g. after the backup battery
// ran flat.
func (c *Clock) Start() (valid bool, err error) {
	if !c.dev.IsRunning() {
		if err := c.dev.SetRunning(true); err != nil {
			return false, &BusError{Op: "start", Err: err}
		}
	}
	return c.dev.IsTimeValid(), nil
}

// Read returns the current date and time. The seven timekeeping registers
// are read in a single transaction so that they are consistent with each
// other.
func (c *Clock) Read() (DateTime, error) {
	var regs [7]byte
	err := c.bus.Tx(c.Address, []byte{ds3231.REG_TIMEDATE}, regs[:])
	if err != nil {
		return DateTime{}, &BusError{Op: "read", Err: err}
	}
	dt, err := decode(regs)
	if err != nil {
		return DateTime{}, &BusError{Op: "decode", Err: err}
	}
	return dt, nil
}

// decode converts the timekeeping registers 0x00..0x06 into a DateTime.
func decode(regs [7]byte) (DateTime, error) {
	var dt DateTime
	var ok [6]bool
	dt.Second, ok[0] = bcd(regs[0] & 0x7F)
	dt.Minute, ok[1] = bcd(regs[1] & 0x7F)
	dt.Hour, ok[2] = decodeHour(regs[2])
	// regs[3] is the day of the week, which is derived, not displayed
	dt.Day, ok[3] = bcd(regs[4] & 0x3F)
	var month int
	month, ok[4] = bcd(regs[5] & 0x1F)
	dt.Month = time.Month(month)
	var year int
	year, ok[5] = bcd(regs[6])
	dt.Year = 2000 + year
	if regs[5]&0x80 != 0 {
		dt.Year += 100
	}
	for _, v := range ok {
		if !v {
			return DateTime{}, ErrInvalidBCD
		}
	}
	if err := dt.Validate(); err != nil {
		return DateTime{}, err
	}
	return dt, nil
}

// decodeHour handles both the 24-hour and the 12-hour AM/PM register
// formats.
func decodeHour(r byte) (int, bool) {
	if r&0x40 == 0 {
		return bcd(r & 0x3F)
	}
	h, ok := bcd(r & 0x1F)
	if !ok || h < 1 || h > 12 {
		// let Validate reject it
		return 24, ok
	}
	h %= 12
	if r&0x20 != 0 {
		h += 12
	}
	return h, true
}

func bcd(b byte) (int, bool) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return int(hi)*10 + int(lo), true
}
