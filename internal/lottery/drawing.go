package lottery

import (
	"errors"
	"fmt"
	"time"
)

// ElapsedLabel is shown once the last drawing cutoff has passed.
const ElapsedLabel = "時間已過"

var (
	ErrEmptySchedule    = errors.New("lottery: draw schedule has no cutoffs")
	ErrScheduleUnsorted = errors.New("lottery: draw cutoffs must be strictly ascending")
)

// Cutoff is the instant entries for a drawing close.
type Cutoff struct {
	At    time.Time `json:"at"`
	Label string    `json:"label"`
}

// DrawSchedule is a fixed ascending list of drawing cutoffs.
type DrawSchedule struct {
	cutoffs []Cutoff
	elapsed string
}

// Taipei is the zone the drawing dates are announced in.
var Taipei = time.FixedZone("Asia/Taipei", 8*60*60)

func NewDrawSchedule(cutoffs []Cutoff, elapsed string) (*DrawSchedule, error) {
	if len(cutoffs) == 0 {
		return nil, ErrEmptySchedule
	}
	for i := 1; i < len(cutoffs); i++ {
		if !cutoffs[i].At.After(cutoffs[i-1].At) {
			return nil, fmt.Errorf("%w: %q is not after %q", ErrScheduleUnsorted, cutoffs[i].Label, cutoffs[i-1].Label)
		}
	}
	if elapsed == "" {
		elapsed = ElapsedLabel
	}
	cp := make([]Cutoff, len(cutoffs))
	copy(cp, cutoffs)
	return &DrawSchedule{cutoffs: cp, elapsed: elapsed}, nil
}

// DefaultDrawSchedule returns the three weekly drawings, each closing at day end.
func DefaultDrawSchedule() *DrawSchedule {
	dayEnd := func(month time.Month, day int) time.Time {
		return time.Date(2024, month, day, 23, 59, 59, 0, Taipei)
	}
	s, err := NewDrawSchedule([]Cutoff{
		{At: dayEnd(time.October, 31), Label: "10/31"},
		{At: dayEnd(time.November, 7), Label: "11/07"},
		{At: dayEnd(time.November, 14), Label: "11/14"},
	}, ElapsedLabel)
	if err != nil {
		panic(err)
	}
	return s
}

// NextCutoff returns the first cutoff strictly after now.
func (s *DrawSchedule) NextCutoff(now time.Time) (Cutoff, bool) {
	for _, c := range s.cutoffs {
		if now.Before(c.At) {
			return c, true
		}
	}
	return Cutoff{}, false
}

// NextLabel is the label of the first cutoff still in the future, or the
// elapsed label when now is at or after the last cutoff.
func (s *DrawSchedule) NextLabel(now time.Time) string {
	if c, ok := s.NextCutoff(now); ok {
		return c.Label
	}
	return s.elapsed
}

func (s *DrawSchedule) Cutoffs() []Cutoff {
	cp := make([]Cutoff, len(s.cutoffs))
	copy(cp, s.cutoffs)
	return cp
}
