// Package auth holds the Authenticator interface spec.md carves out as an
// external collaborator (C8): something that verifies a username/password
// pair. The HTTP transport and the WebDAV dispatcher never know which
// concrete kind backs it.
package auth

// Authenticator verifies a username/password pair.
//
// Grounded on original_source/webdavdlib/authenticator.py's Authenticator
// base class and its DebugAuthenticator/StaticAuthenticator/PAMAuthenticator
// implementations.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// Debug authenticates any username against itself as the password. Useful
// for local testing only; never wire this into a deployed server.
type Debug struct{}

func (Debug) Authenticate(username, password string) bool {
	return username != "" && username == password
}

// Static authenticates against a fixed in-memory username->password table.
//
// Grounded on original_source/webdavdlib/authenticator.py's
// StaticAuthenticator.
type Static struct {
	Mapping map[string]string
}

func NewStatic(mapping map[string]string) Static {
	return Static{Mapping: mapping}
}

func (s Static) Authenticate(username, password string) bool {
	want, ok := s.Mapping[username]
	if !ok {
		return false
	}
	return want == password
}
