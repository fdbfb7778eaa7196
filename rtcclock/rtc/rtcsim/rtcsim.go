// Package rtcsim simulates a DS3231 behind an I2C bus. Bus satisfies
// drivers.I2C, so any driver written against the TinyGo bus interface can
// talk to it.
package rtcsim

import (
	"errors"
	"time"

	"tinygo.org/x/drivers/ds3231"
)

// ErrNack is returned for transactions addressed to a device that is not
// on the bus.
var ErrNack = errors.New("rtcsim: address not acknowledged")

// ErrYearRange is returned by SetTime for years the DS3231 cannot hold.
var ErrYearRange = errors.New("rtcsim: year outside 2000-2199")

const numRegs = 0x13

// Bus is a DS3231 register file on an otherwise empty bus.
type Bus struct {
	Address uint16

	regs [numRegs]byte
	ptr  byte
	fail error
	txs  int

	now    func() time.Time
	offset time.Duration
}

// New returns a device with a running oscillator, a valid time of
// 2000-01-01 00:00:00 and the power-on control register.
func New() *Bus {
	b := &Bus{Address: ds3231.Address}
	b.regs[ds3231.REG_CONTROL] = 0x1C
	b.SetTime(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC))
	return b
}

// Follow makes the timekeeping registers advance with now, starting from
// the time currently held.
func (b *Bus) Follow(now func() time.Time) {
	t := b.held()
	b.now = now
	b.offset = t.Sub(now())
}

// SetTime loads t into the timekeeping registers.
func (b *Bus) SetTime(t time.Time) error {
	if t.Year() < 2000 || t.Year() > 2199 {
		return ErrYearRange
	}
	b.load(t)
	if b.now != nil {
		b.offset = t.Sub(b.now())
	}
	return nil
}

// SetRegisters overwrites registers starting at reg, for injecting values a
// healthy device would never hold.
func (b *Bus) SetRegisters(reg byte, data ...byte) {
	for i, v := range data {
		b.regs[(int(reg)+i)%numRegs] = v
	}
}

// Register returns the content of reg.
func (b *Bus) Register(reg byte) byte {
	return b.regs[reg%numRegs]
}

// StopOscillator stops timekeeping and sets the oscillator-stop flag, as
// happens when the device loses both supplies.
func (b *Bus) StopOscillator() {
	b.regs[ds3231.REG_CONTROL] |= 1 << ds3231.EOSC
	b.regs[ds3231.REG_STATUS] |= 1 << ds3231.OSF
}

// Fail makes every following transaction return err. Fail(nil) restores
// the bus.
func (b *Bus) Fail(err error) {
	b.fail = err
}

// Transactions is the number of transactions attempted so far.
func (b *Bus) Transactions() int { return b.txs }

// Tx performs a combined write/read transaction. The first written byte
// sets the register pointer; further written bytes are stored from there.
// Reads continue from the pointer, wrapping at the end of the register file.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.txs++
	if b.fail != nil {
		return b.fail
	}
	if addr != b.Address {
		return ErrNack
	}
	b.tick()
	wroteTime := false
	if len(w) > 0 {
		b.ptr = w[0] % numRegs
		for _, v := range w[1:] {
			if b.ptr <= 0x06 {
				wroteTime = true
			}
			b.regs[b.ptr] = v
			b.ptr = (b.ptr + 1) % numRegs
		}
	}
	for i := range r {
		r[i] = b.regs[b.ptr]
		b.ptr = (b.ptr + 1) % numRegs
	}
	if wroteTime && b.now != nil {
		b.offset = b.held().Sub(b.now())
	}
	return nil
}

// ReadRegister and WriteRegister are the single-register helpers some bus
// implementations expose in addition to Tx.

func (b *Bus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

func (b *Bus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

func (b *Bus) running() bool {
	return b.regs[ds3231.REG_CONTROL]&(1<<ds3231.EOSC) == 0
}

// tick brings the timekeeping registers up to date when following a clock.
func (b *Bus) tick() {
	if b.now == nil {
		return
	}
	if !b.running() {
		// frozen: keep the offset pointing at the held time
		b.offset = b.held().Sub(b.now())
		return
	}
	b.load(b.now().Add(b.offset))
}

func (b *Bus) load(t time.Time) {
	t = t.UTC()
	year := t.Year() - 2000
	var century byte
	if year >= 100 {
		year -= 100
		century = 0x80
	}
	b.regs[0x00] = toBCD(t.Second())
	b.regs[0x01] = toBCD(t.Minute())
	b.regs[0x02] = toBCD(t.Hour())
	b.regs[0x03] = toBCD(int(t.Weekday()) + 1)
	b.regs[0x04] = toBCD(t.Day())
	b.regs[0x05] = toBCD(int(t.Month())) | century
	b.regs[0x06] = toBCD(year)
}

// held decodes the timekeeping registers without validation, assuming
// 24-hour mode.
func (b *Bus) held() time.Time {
	year := 2000 + fromBCD(b.regs[0x06])
	if b.regs[0x05]&0x80 != 0 {
		year += 100
	}
	return time.Date(year,
		time.Month(fromBCD(b.regs[0x05]&0x1F)),
		fromBCD(b.regs[0x04]&0x3F),
		fromBCD(b.regs[0x02]&0x3F),
		fromBCD(b.regs[0x01]&0x7F),
		fromBCD(b.regs[0x00]&0x7F),
		0, time.UTC)
}

func toBCD(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
