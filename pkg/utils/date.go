package utils

import (
	"log"
	"time"
)

// MarketLocation is the exchange timezone used for trading-day boundaries.
func MarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatal("Failed to load market location", err)
	}
	return loc
}

// TimeNowMarket returns the current time in the exchange timezone.
func TimeNowMarket() time.Time {
	return time.Now().In(MarketLocation())
}

// TradingDay truncates a time to its trading-day date in the exchange
// timezone. The daily circuit breaker and snapshots key off this value.
func TradingDay(t time.Time) time.Time {
	local := t.In(MarketLocation())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, MarketLocation())
}
