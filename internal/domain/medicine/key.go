package medicine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Key returns a stable identifier for the record: the backend id when
// present, otherwise a hash of the fields that never change after listing.
func (r Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	data := strings.Join([]string{
		r.Medicine,
		r.Company,
		r.ExpDate,
		r.ContactNo,
		strconv.Itoa(int(r.Qty)),
		r.EmailID,
		r.Packing,
	}, "|")
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

// AssignKeys returns keys parallel to records, unique within the slice.
// Repeated keys get a "~n" suffix; the repeated base keys are returned so
// the caller can report them.
func AssignKeys(records []Record) (keys []string, repeated []string) {
	keys = make([]string, len(records))
	seen := make(map[string]int, len(records))
	for i, r := range records {
		k := r.Key()
		n := seen[k]
		seen[k] = n + 1
		if n > 0 {
			if n == 1 {
				repeated = append(repeated, k)
			}
			k = fmt.Sprintf("%s~%d", k, n)
		}
		keys[i] = k
	}
	return keys, repeated
}
