package client

import (
	"sort"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/samber/lo"
)

// FeeScheduleEntry is the monthly fee valid on [EffectiveFrom, EffectiveTo)
type FeeScheduleEntry struct {
	EffectiveFrom time.Time `json:"effective_from"`
	// EffectiveTo is exclusive, nil for the open-ended current entry
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	MonthlyAmount int64      `json:"monthly_amount"`
	Description   string     `json:"description"`
}

// Contains reports whether the entry is effective on date
func (e FeeScheduleEntry) Contains(date time.Time) bool {
	if date.Before(e.EffectiveFrom) {
		return false
	}
	return e.EffectiveTo == nil || date.Before(*e.EffectiveTo)
}

// lastDay returns the last calendar day the entry covers, nil when open-ended
func (e FeeScheduleEntry) lastDay() *time.Time {
	if e.EffectiveTo == nil {
		return nil
	}
	return lo.ToPtr(types.AddDays(*e.EffectiveTo, -1))
}

// FeeSchedule is the ordered recurring fee history of a client
type FeeSchedule []FeeScheduleEntry

// Segment is a maximal inclusive day range charged by a single entry
type Segment struct {
	Start time.Time
	End   time.Time
	Entry FeeScheduleEntry
}

// Resolve returns the entry effective on date, nil if none. Two matching
// entries mean the stored schedule is corrupt.
func (s FeeSchedule) Resolve(date time.Time) (*FeeScheduleEntry, error) {
	var match *FeeScheduleEntry
	for i := range s {
		if !s[i].Contains(date) {
			continue
		}
		if match != nil {
			return nil, ierr.WithError(ErrScheduleOverlap).
				WithHintf("more than one fee schedule entry is effective on %s", types.FormatDate(date)).
				WithReportableDetails(map[string]any{
					"date":    types.FormatDate(date),
					"entries": []string{types.FormatDate(match.EffectiveFrom), types.FormatDate(s[i].EffectiveFrom)},
				}).
				Mark(ierr.ErrDataIntegrity)
		}
		match = &s[i]
	}
	if match == nil {
		return nil, nil
	}
	entry := *match
	return &entry, nil
}

// Segments splits the inclusive range [from, to] at every schedule boundary.
// Days without an effective entry are left out.
func (s FeeSchedule) Segments(from, to time.Time) ([]Segment, error) {
	if to.Before(from) {
		return nil, nil
	}

	segments := make([]Segment, 0, len(s))
	for _, e := range s {
		start := types.MaxDate(e.EffectiveFrom, from)
		end := to
		if last := e.lastDay(); last != nil {
			end = types.MinDate(*last, to)
		}
		if end.Before(start) {
			continue
		}
		segments = append(segments, Segment{Start: start, End: end, Entry: e})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start.Before(segments[j].Start)
	})

	for i := 1; i < len(segments); i++ {
		if !segments[i].Start.After(segments[i-1].End) {
			return nil, ierr.WithError(ErrScheduleOverlap).
				WithHintf("fee schedule entries overlap on %s", types.FormatDate(segments[i].Start)).
				WithReportableDetails(map[string]any{
					"first":  types.FormatDate(segments[i-1].Entry.EffectiveFrom),
					"second": types.FormatDate(segments[i].Entry.EffectiveFrom),
				}).
				Mark(ierr.ErrDataIntegrity)
		}
	}

	return segments, nil
}

// Validate checks a schedule submitted by an operator
func (s FeeSchedule) Validate() error {
	if err := s.check(); err != nil {
		return ierr.WithError(err).
			WithHint("Fee schedule entries must be ordered, non-overlapping and non-negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// check returns the first structural violation, wrapped around a package sentinel
func (s FeeSchedule) check() error {
	for i, e := range s {
		if e.EffectiveFrom.IsZero() {
			return ierr.WithError(ErrInvalidFeeSchedule).
				WithMessagef("entry %d has no effective_from", i).
				Error()
		}
		if e.MonthlyAmount < 0 {
			return ierr.WithError(ErrInvalidFeeSchedule).
				WithMessagef("entry %d has negative monthly amount %d", i, e.MonthlyAmount).
				Error()
		}
		if e.EffectiveTo != nil && !e.EffectiveTo.After(e.EffectiveFrom) {
			return ierr.WithError(ErrInvalidFeeSchedule).
				WithMessagef("entry %d ends before it starts", i).
				Error()
		}
		if e.EffectiveTo == nil && i != len(s)-1 {
			return ierr.WithError(ErrScheduleOverlap).
				WithMessagef("open-ended entry %d is not the last one", i).
				Error()
		}
		if i == 0 {
			continue
		}
		prev := s[i-1]
		if !e.EffectiveFrom.After(prev.EffectiveFrom) {
			return ierr.WithError(ErrInvalidFeeSchedule).
				WithMessagef("entry %d is not ordered by effective_from", i).
				Error()
		}
		if prev.EffectiveTo == nil || prev.EffectiveTo.After(e.EffectiveFrom) {
			return ierr.WithError(ErrScheduleOverlap).
				WithMessagef("entry %d overlaps entry %d", i, i-1).
				Error()
		}
	}
	return nil
}

// FirstEffectiveFrom returns the start of the earliest entry
func (s FeeSchedule) FirstEffectiveFrom() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	first := s[0].EffectiveFrom
	for _, e := range s[1:] {
		first = types.MinDate(first, e.EffectiveFrom)
	}
	return first, true
}

// ChangeFee returns a new schedule in which the open entry ends on
// effectiveFrom and a new open entry starts there
func (s FeeSchedule) ChangeFee(effectiveFrom time.Time, monthlyAmount int64, description string) (FeeSchedule, error) {
	out := make(FeeSchedule, len(s), len(s)+1)
	copy(out, s)

	if n := len(out); n > 0 {
		last := &out[n-1]
		if !effectiveFrom.After(last.EffectiveFrom) {
			return nil, ierr.NewErrorf("fee change on %s does not follow the current entry starting %s",
				types.FormatDate(effectiveFrom), types.FormatDate(last.EffectiveFrom)).
				WithHint("A fee change must start after the current fee became effective").
				Mark(ierr.ErrValidation)
		}
		if last.EffectiveTo == nil || last.EffectiveTo.After(effectiveFrom) {
			last.EffectiveTo = lo.ToPtr(effectiveFrom)
		}
	}

	out = append(out, FeeScheduleEntry{
		EffectiveFrom: effectiveFrom,
		MonthlyAmount: monthlyAmount,
		Description:   description,
	})

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
