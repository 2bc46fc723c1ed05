package common

const (
	// RedisKeySessionRunning is the per-session-type in-progress flag prefix.
	RedisKeySessionRunning = "trader.session.running"

	// RedisKeyTickerLock is the per-ticker order mutual-exclusion lock prefix.
	RedisKeyTickerLock = "trader.ticker.lock"

	// RedisKeyPriceCache is the quote cache prefix.
	RedisKeyPriceCache = "trader.price"
)

// Session types accepted by the decision orchestrator.
const (
	SessionPreSession = "PRE_SESSION"
	SessionMidSession = "MID_SESSION"
	SessionPreClose   = "PRE_CLOSE"
	SessionOnDemand   = "ON_DEMAND"
)

// IsValidSessionType reports whether the given value is a known session
// type.
func IsValidSessionType(sessionType string) bool {
	switch sessionType {
	case SessionPreSession, SessionMidSession, SessionPreClose, SessionOnDemand:
		return true
	}
	return false
}
