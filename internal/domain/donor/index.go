// Package donor holds donor profiles and the email lookup index used when
// listing medicines.
package donor

// AnonymousName is shown when a donor cannot be resolved.
const AnonymousName = "Anonymous Donor"

// Record is a donor profile. Only the fields the portal reads are typed.
type Record struct {
	EmailID       string `json:"emailid"`
	Name          string `json:"name"`
	PhoneNo       string `json:"phoneNo,omitempty"`
	Age           string `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty"`
	CurCity       string `json:"curcity,omitempty"`
	CurAddress    string `json:"curaddress,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	Contact       string `json:"contact,omitempty"`
	AadhaarPic    string `json:"adhaarpic,omitempty"`
	ProfilePic    string `json:"profilepic,omitempty"`
}

// Index maps donor email to record. It is rebuilt from scratch on every
// refresh of the donor collection.
type Index struct {
	byEmail map[string]Record
}

// BuildIndex indexes donors by email. Donors without an email are skipped;
// on duplicate emails the later record wins.
func BuildIndex(donors []Record) *Index {
	idx := &Index{byEmail: make(map[string]Record, len(donors))}
	for _, d := range donors {
		if d.EmailID == "" {
			continue
		}
		idx.byEmail[d.EmailID] = d
	}
	return idx
}

// Len returns the number of indexed donors.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.byEmail)
}

// Lookup returns the donor for email.
func (i *Index) Lookup(email string) (Record, bool) {
	if i == nil || email == "" {
		return Record{}, false
	}
	d, ok := i.byEmail[email]
	return d, ok
}

// ResolveName returns the donor's name, or AnonymousName when the email is
// empty, unknown, or the donor has no name.
func (i *Index) ResolveName(email string) string {
	d, ok := i.Lookup(email)
	if !ok || d.Name == "" {
		return AnonymousName
	}
	return d.Name
}

// Phone returns the donor's phone number, or "" when unknown.
func (i *Index) Phone(email string) string {
	d, _ := i.Lookup(email)
	return d.PhoneNo
}
