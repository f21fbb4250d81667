// Package needy holds the profile of a registered needy individual.
package needy

// Record is a needy profile as stored by the backend.
type Record struct {
	ID              string `json:"_id,omitempty"`
	Email           string `json:"email"`
	Contact         string `json:"contact"`
	Name            string `json:"name"`
	DOB             string `json:"dob"`
	Gender          string `json:"gender"`
	Address         string `json:"address"`
	AadhaarFrontURL string `json:"aadhaarFrontUrl,omitempty"`
	AadhaarBackURL  string `json:"aadhaarBackUrl,omitempty"`
}
