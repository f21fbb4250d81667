// Package medicine implements the donated-medicine model: expiry
// bucketing, the collection filter and the summary counts.
package medicine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one donated medicine as listed by the backend.
type Record struct {
	ID        string   `json:"_id,omitempty"`
	Medicine  string   `json:"medicine"`
	Company   string   `json:"company"`
	ExpDate   string   `json:"expdate,omitempty"`
	ContactNo string   `json:"contactno"`
	Qty       Quantity `json:"qty"`
	EmailID   string   `json:"emailid"`
	Packing   string   `json:"packing,omitempty"`
}

// HasExpiry reports whether the record carries an expiry date at all.
func (r Record) HasExpiry() bool {
	return r.ExpDate != ""
}

// Quantity is a unit count. The backend sends it either as a JSON number
// or as a numeric string, depending on how the donor form was submitted.
type Quantity int

// UnmarshalJSON accepts numbers, numeric strings and null.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*q = 0
			return nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", raw, err)
	}
	*q = Quantity(f)
	return nil
}
