package medicine

import (
	"strings"
	"time"
)

// Criteria holds the user-driven filter state of the medicine listing.
type Criteria struct {
	Email  string
	Text   string
	Bucket Bucket
}

// Filter narrows records by email, then text, then expiry bucket. Each
// stage is a pure subset operation, so the result is an order-preserving
// subsequence of records and does not depend on stage order.
func Filter(records []Record, c Criteria, now time.Time) []Record {
	email := ""
	if strings.TrimSpace(c.Email) != "" {
		email = strings.ToLower(c.Email)
	}
	text := ""
	if strings.TrimSpace(c.Text) != "" {
		text = strings.ToLower(c.Text)
	}
	bucket := c.Bucket
	if bucket == "" {
		bucket = BucketAll
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if email != "" && !matchesEmail(r, email) {
			continue
		}
		if text != "" && !matchesText(r, text) {
			continue
		}
		if !r.InBucket(bucket, now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesEmail(r Record, query string) bool {
	return r.EmailID != "" && strings.Contains(strings.ToLower(r.EmailID), query)
}

func matchesText(r Record, query string) bool {
	if r.Medicine != "" && strings.Contains(strings.ToLower(r.Medicine), query) {
		return true
	}
	return r.Company != "" && strings.Contains(strings.ToLower(r.Company), query)
}

// Stats are the summary counts over the unfiltered collection.
type Stats struct {
	Total        int `json:"total"`
	ExpiringSoon int `json:"expiringSoon"`
	Expired      int `json:"expired"`
}

// Summarize counts records by bucket. Records without a readable expiry
// only contribute to Total.
func Summarize(records []Record, now time.Time) Stats {
	s := Stats{Total: len(records)}
	for _, r := range records {
		state, days := r.expiry(now)
		if state != expiryKnown {
			continue
		}
		switch Classify(days) {
		case BucketExpiring:
			s.ExpiringSoon++
		case BucketExpired:
			s.Expired++
		}
	}
	return s
}
