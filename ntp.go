package srtc

import "time"

// NtpTime is a 64-bit NTP timestamp split into 32 bits of whole seconds
// since the NTP epoch (1900-01-01) and 32 bits of fractional seconds.
// Grounded on original_source/include/srtc/srtc.h's NtpTime usage in
// sender_report.h and the encode/decode logic in src/util.cpp's
// getNtpTime.
type NtpTime struct {
	Seconds  uint32
	Fraction uint32
}

const ntpUnixOffsetSeconds = 2208988800

// NtpTimeFromTime converts a wall-clock time.Time into an NtpTime.
func NtpTimeFromTime(t time.Time) NtpTime {
	sec := t.Unix() + ntpUnixOffsetSeconds
	nsec := t.Nanosecond()
	frac := uint32(float64(nsec) * 4.294967296)
	return NtpTime{Seconds: uint32(sec), Fraction: frac}
}

// Middle32 returns the middle 32 bits of the 64-bit NTP timestamp, the
// value carried as "last SR" (LSR) in a Receiver Report.
func (n NtpTime) Middle32() uint32 {
	return n.Seconds<<16 | n.Fraction>>16
}
