package models

// User is the slice of the auth collaborator this system reads:
// enrollment and orders only need to resolve an email to a known
// account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
