package presence

import (
	"fmt"
	"time"
)

// HumanizeLastActivity renders how long ago lastActivity was, e.g.
// "5 minutes ago" or "yesterday".
func HumanizeLastActivity(lastActivity *time.Time, now time.Time) string {
	if lastActivity == nil {
		return "never"
	}

	diff := now.Sub(*lastActivity)
	if diff < 0 {
		diff = 0
	}
	days := int(diff / (24 * time.Hour))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%d seconds ago", int(diff/time.Second))
	case diff < time.Hour:
		return plural(int(diff/time.Minute), "minute")
	case days == 0:
		return plural(int(diff/time.Hour), "hour")
	case days == 1:
		return "yesterday"
	}
	return fmt.Sprintf("%d days ago", days)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
