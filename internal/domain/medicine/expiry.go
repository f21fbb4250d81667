package medicine

import (
	"math"
	"strings"
	"time"
)

// Bucket classifies a record by days until expiry.
type Bucket string

const (
	BucketAll      Bucket = "all"
	BucketValid    Bucket = "valid"
	BucketExpiring Bucket = "expiring"
	BucketExpired  Bucket = "expired"
)

// ExpiringWindowDays is the upper bound (inclusive) of the expiring bucket.
const ExpiringWindowDays = 30

// ParseBucket maps a filter value to a Bucket. Unknown values select all.
func ParseBucket(s string) Bucket {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketValid:
		return BucketValid
	case BucketExpiring:
		return BucketExpiring
	case BucketExpired:
		return BucketExpired
	default:
		return BucketAll
	}
}

// Date-only values are read as UTC midnight, date-times without an offset
// as local time.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseExpiry parses an expdate value.
func ParseExpiry(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntilExpiry is ceil((expiry - now) / 24h) on raw timestamps. Neither
// side is truncated to midnight, so the time of day moves the boundary.
func DaysUntilExpiry(expiry, now time.Time) int {
	return int(math.Ceil(float64(expiry.Sub(now)) / float64(24*time.Hour)))
}

// Classify returns the bucket for a day count.
func Classify(days int) Bucket {
	switch {
	case days <= 0:
		return BucketExpired
	case days <= ExpiringWindowDays:
		return BucketExpiring
	default:
		return BucketValid
	}
}

// expiryState is the result of reading a record's expdate.
type expiryState int

const (
	expiryAbsent expiryState = iota
	expiryUnreadable
	expiryKnown
)

func (r Record) expiry(now time.Time) (expiryState, int) {
	if !r.HasExpiry() {
		return expiryAbsent, 0
	}
	t, ok := ParseExpiry(r.ExpDate)
	if !ok {
		return expiryUnreadable, 0
	}
	return expiryKnown, DaysUntilExpiry(t, now)
}

// InBucket reports whether the record passes the status stage for b.
// Records without an expiry pass every bucket; an unreadable expiry passes
// none but BucketAll.
func (r Record) InBucket(b Bucket, now time.Time) bool {
	if b == BucketAll {
		return true
	}
	state, days := r.expiry(now)
	switch state {
	case expiryAbsent:
		return true
	case expiryUnreadable:
		return false
	}
	return Classify(days) == b
}
