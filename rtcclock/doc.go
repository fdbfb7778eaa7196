// Command rtcclock shows the time from a DS3231 real-time clock on an
// HD44780 character LCD and blinks the on-board LED once a second.
//
// Flash it onto a Raspberry Pi Pico with
//
//	tinygo flash -target=pico ./rtcclock
//
// Built with the regular Go toolchain it runs the same loop against a
// simulated LCD and RTC and prints each frame:
//
//	go run ./rtcclock -frames 5 -half-period 100ms
package main
