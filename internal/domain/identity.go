package domain

// Identity is the resolved caller identity supplied by the authentication
// boundary. The core trusts it and never reads ambient session state; every
// privileged operation checks Admin and fails with ErrForbidden otherwise.
type Identity struct {
	AccountID string
	Admin     bool
}
