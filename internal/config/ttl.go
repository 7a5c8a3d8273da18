package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTTL parses a lifetime such as "15m", "1h" or "7d".  Anything
// time.ParseDuration understands is accepted; a trailing "d" counts whole
// days.  Zero and negative lifetimes are rejected.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty ttl")
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid ttl %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid ttl %q", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive: %q", s)
	}
	return d, nil
}
