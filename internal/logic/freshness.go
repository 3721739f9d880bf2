package logic

import "time"

const (
	DefaultPreKickoffTTL = 90 * time.Minute
	DefaultMaxStaleness  = 24 * time.Hour
)

// IsStale reports whether a cached prediction needs regenerating. Zero
// lastUpdated or kickoff means unknown. Before kickoff the short pre-kickoff
// window applies; once the match has started (or when kickoff is unknown)
// the long maxStaleness window applies. Any panic counts as stale.
func IsStale(now, lastUpdated, kickoff time.Time, preKickoffTTL, maxStaleness time.Duration) (stale bool) {
	defer func() {
		if r := recover(); r != nil {
			stale = true
		}
	}()

	if lastUpdated.IsZero() {
		return true
	}
	age := now.Sub(lastUpdated)

	if kickoff.IsZero() || !now.Before(kickoff) {
		return age > maxStaleness
	}
	return age > preKickoffTTL
}
