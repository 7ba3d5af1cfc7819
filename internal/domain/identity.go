package domain

// Identity is a verified caller, as returned by the identity verifier.
type Identity struct {
	UID   string
	Name  string
	Email string
}

// DirectoryUser is a user that can be reached by e-mail when mentioned.
type DirectoryUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
