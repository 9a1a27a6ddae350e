// Package clock supplies the current calendar date in a fixed reference
// timezone. Usage counters are only meaningful relative to a calendar day,
// so every component that compares dates must go through the same Clock.
package clock

import "time"

// DateLayout is the canonical YYYY-MM-DD form used for usage dates.
const DateLayout = "2006-01-02"

// Clock reports the current calendar date.
type Clock interface {
	// Today returns the current date as YYYY-MM-DD in the reference zone.
	Today() string

	// Now returns the current instant in the reference zone.
	Now() time.Time
}

// System is a Clock backed by the wall clock in a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a System clock for the named IANA timezone.
// An empty name selects UTC.
func NewSystem(timezone string) (*System, error) {
	if timezone == "" {
		return &System{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &System{loc: loc}, nil
}

func (s *System) Now() time.Time {
	return time.Now().In(s.loc)
}

func (s *System) Today() string {
	return s.Now().Format(DateLayout)
}

// Fixed is a Clock pinned to a single instant, for tests.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time {
	return f.T
}

func (f *Fixed) Today() string {
	return f.T.Format(DateLayout)
}
