package broadcast

import (
	"fmt"
	"strconv"
	"strings"
)

// parseHHMM parses a local wall time of the form "HH:MM".
func parseHHMM(s string) (hh, mm int, err error) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hh, err = strconv.Atoi(left)
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err = strconv.Atoi(right)
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hh, mm, nil
}
