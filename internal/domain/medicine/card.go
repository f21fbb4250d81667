package medicine

import "time"

// Status labels shown on a medicine card.
const (
	LabelExpired      = "Expired"
	LabelExpiringSoon = "Expiring Soon"
	LabelValid        = "Valid"
)

// DonorDirectory resolves donor details by email.
type DonorDirectory interface {
	ResolveName(email string) string
	Phone(email string) string
}

// Card is the list projection of a record.
type Card struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Company     string `json:"company"`
	Qty         int    `json:"qty"`
	ExpDate     string `json:"expdate,omitempty"`
	Status      string `json:"status"`
	Requestable bool   `json:"requestable"`
}

// NewCard builds the card for r under key.
func NewCard(key string, r Record, now time.Time) Card {
	status := LabelValid
	if state, days := r.expiry(now); state == expiryKnown {
		switch Classify(days) {
		case BucketExpired:
			status = LabelExpired
		case BucketExpiring:
			status = LabelExpiringSoon
		}
	}
	return Card{
		Key:         key,
		Name:        orDefault(r.Medicine, "Unknown Medicine"),
		Company:     orDefault(r.Company, "Unknown Company"),
		Qty:         int(r.Qty),
		ExpDate:     r.ExpDate,
		Status:      status,
		Requestable: status != LabelExpired,
	}
}

// Detail is the modal projection of a record.
type Detail struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Company    string `json:"company"`
	Qty        int    `json:"qty"`
	Expiry     string `json:"expiry"`
	Packing    string `json:"packing,omitempty"`
	Contact    string `json:"contact"`
	DonorName  string `json:"donorName"`
	DonorEmail string `json:"donorEmail,omitempty"`
	DonorPhone string `json:"donorPhone,omitempty"`
	Expired    bool   `json:"expired"`
}

// NewDetail builds the detail view for r. Expired here means the expiry
// instant has passed, without day rounding.
func NewDetail(key string, r Record, donors DonorDirectory, now time.Time) Detail {
	d := Detail{
		Key:        key,
		Name:       orDefault(r.Medicine, "Unknown Medicine"),
		Company:    orDefault(r.Company, "Unknown Company"),
		Qty:        int(r.Qty),
		Expiry:     "No expiry date",
		Packing:    r.Packing,
		Contact:    orDefault(r.ContactNo, "No contact number"),
		DonorName:  donors.ResolveName(r.EmailID),
		DonorEmail: r.EmailID,
	}
	if t, ok := ParseExpiry(r.ExpDate); ok {
		d.Expiry = t.Format("Jan 2, 2006")
		d.Expired = !t.After(now)
	} else if r.HasExpiry() {
		d.Expiry = r.ExpDate
	}
	if r.EmailID != "" {
		if phone := donors.Phone(r.EmailID); phone != "" && phone != r.ContactNo {
			d.DonorPhone = phone
		}
	}
	return d
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
