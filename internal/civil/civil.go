// Package civil resolves instants into calendar parts of one fixed timezone.
//
// All "once per day" state in the bot is scoped by the civil day of the
// business timezone, never by server-local time.
package civil

import (
	"fmt"
	"time"
)

// Parts is the wall-clock decomposition of an instant in a fixed location.
type Parts struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// At decomposes t in loc.
func At(t time.Time, loc *time.Location) Parts {
	lt := t.In(loc)
	return Parts{
		Year:   lt.Year(),
		Month:  int(lt.Month()),
		Day:    lt.Day(),
		Hour:   lt.Hour(),
		Minute: lt.Minute(),
		Second: lt.Second(),
	}
}

// DayKey returns the civil date of t in loc as "YYYYMMDD".
func DayKey(t time.Time, loc *time.Location) string {
	p := At(t, loc)
	return fmt.Sprintf("%04d%02d%02d", p.Year, p.Month, p.Day)
}

// NextAt returns the next instant at hh:mm local time in loc, strictly after t.
// If hh:mm today has already passed (or is exactly now), the result is tomorrow.
func NextAt(t time.Time, loc *time.Location, hh, mm int) time.Time {
	lt := t.In(loc)
	next := time.Date(lt.Year(), lt.Month(), lt.Day(), hh, mm, 0, 0, loc)
	if !next.After(lt) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Between reports whether t falls in [fromHH:fromMM, toHH:toMM) local time.
func Between(t time.Time, loc *time.Location, fromHH, fromMM, toHH, toMM int) bool {
	p := At(t, loc)
	cur := p.Hour*60 + p.Minute
	return cur >= fromHH*60+fromMM && cur < toHH*60+toMM
}
