//go:build windows

package fs

import "errors"

// Operator brackets a backend call with an identity change; see
// operator.go for the non-windows definition this mirrors.
type Operator interface {
	Begin(user string) error
	End(user string) error
}

// NoopOperator performs no identity switch. It is the default.
type NoopOperator struct{}

func (NoopOperator) Begin(string) error { return nil }
func (NoopOperator) End(string) error   { return nil }

// UnixOperator is unavailable on windows: there is no setuid/setgid/umask
// equivalent to switch into. NewUnixOperator still exists so callers (e.g.
// internal/config) don't need a build-tag of their own; Begin/End just
// fail, so a windows deployment must configure NoopOperator instead.
type UnixOperator struct {
	Umask int
}

func NewUnixOperator(umask int) *UnixOperator {
	return &UnixOperator{Umask: umask}
}

func (o *UnixOperator) Begin(string) error {
	return errors.New("fs: UnixOperator is not supported on windows")
}

func (o *UnixOperator) End(string) error {
	return errors.New("fs: UnixOperator is not supported on windows")
}
