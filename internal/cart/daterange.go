package cart

import "time"

// queryDate is the inclusive-range format the store API accepts.
const queryDate = "2006-01-02"

// DateRange bounds a cart list query. Either side may be absent.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// WithStart sets the start bound. Selecting a start that would put the
// range out of order clears the end bound instead of keeping an invalid
// pair around.
func (r DateRange) WithStart(start *time.Time) DateRange {
	r.Start = start
	if start != nil && r.End != nil && r.End.Before(*start) {
		r.End = nil
	}
	return r
}

// WithEnd sets the end bound. An end earlier than the current start is
// ignored, the way a disabled picker date cannot be chosen.
func (r DateRange) WithEnd(end *time.Time) DateRange {
	if end != nil && r.Start != nil && end.Before(*r.Start) {
		return r
	}
	r.End = end
	return r
}

// Query renders both bounds as yyyy-MM-dd, empty when absent.
func (r DateRange) Query() (startDate, endDate string) {
	if r.Start != nil {
		startDate = r.Start.Format(queryDate)
	}
	if r.End != nil {
		endDate = r.End.Format(queryDate)
	}
	return startDate, endDate
}

// ParseRange builds a normalized range from raw yyyy-MM-dd query values.
// Unparsable values are treated as absent.
func ParseRange(startDate, endDate string) DateRange {
	var r DateRange
	if t, err := time.Parse(queryDate, endDate); err == nil {
		r = r.WithEnd(&t)
	}
	if t, err := time.Parse(queryDate, startDate); err == nil {
		r = r.WithStart(&t)
	}
	return r
}
