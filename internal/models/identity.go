package models

// Identity is the authenticated user's profile.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// IsZero reports whether no identity is present.
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// Credential is an opaque bearer token.
type Credential string

// String masks the token so it never lands in logs verbatim.
func (c Credential) String() string {
	if len(c) <= 8 {
		return "****"
	}
	return string(c[:4]) + "****"
}

// Token returns the raw bearer token for use in Authorization headers.
func (c Credential) Token() string {
	return string(c)
}
