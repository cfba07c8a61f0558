package utils

import (
	"time"
)

// IstanbulLocation is the timezone of Borsa Istanbul.
var IstanbulLocation *time.Location

func init() {
	var err error
	IstanbulLocation, err = time.LoadLocation("Europe/Istanbul")
	if err != nil {
		IstanbulLocation = time.FixedZone("TRT", 3*60*60)
	}
}

// MarketStatus is the Borsa Istanbul equity session state.
type MarketStatus string

const (
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketOpen    MarketStatus = "OPEN"
	MarketClosing MarketStatus = "CLOSING_AUCTION"
	MarketClosed  MarketStatus = "CLOSED"
)

// Session boundaries in minutes after midnight, Istanbul time.
const (
	preOpenStart   = 9*60 + 40
	continuousOpen = 10 * 60
	closingAuction = 18 * 60
	sessionEnd     = 18*60 + 10
)

// MarketStatusAt returns the session state at t. Holidays are not known
// and read as regular weekdays.
func MarketStatusAt(t time.Time) MarketStatus {
	now := t.In(IstanbulLocation)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes >= preOpenStart && minutes < continuousOpen:
		return MarketPreOpen
	case minutes >= continuousOpen && minutes < closingAuction:
		return MarketOpen
	case minutes >= closingAuction && minutes < sessionEnd:
		return MarketClosing
	}
	return MarketClosed
}

// GetMarketStatus returns the current session state.
func GetMarketStatus() MarketStatus {
	return MarketStatusAt(time.Now())
}

// NextMarketOpen returns the next continuous-session open after t.
func NextMarketOpen(t time.Time) time.Time {
	now := t.In(IstanbulLocation)
	next := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, IstanbulLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// TimeUntilMarketClose returns the time left in today's continuous session,
// or zero when it is not running.
func TimeUntilMarketClose(t time.Time) time.Duration {
	if MarketStatusAt(t) != MarketOpen {
		return 0
	}
	now := t.In(IstanbulLocation)
	close := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, IstanbulLocation)
	return close.Sub(now)
}
