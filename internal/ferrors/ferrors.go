// Package ferrors implements the error taxonomy of the validation
// pipeline: ParseError, IOError, NetworkError, CacheError, ConfigError,
// UnsupportedError, and InternalError. Each wraps an underlying error via
// golang.org/x/xerrors so callers retain both a stable type to switch on
// (errors.As) and a frame-carrying message.
package ferrors

import "golang.org/x/xerrors"

// ParseError signals a failure in the specifier grammar, a manifest
// format, or a version token.
type ParseError struct {
	Context string
	Err     error
}

func (e *ParseError) Error() string {
	return xerrors.Errorf("parse error (%s): %w", e.Context, e.Err).Error()
}
func (e *ParseError) Unwrap() error { return e.Err }

// IOError signals a filesystem read failure or a subprocess spawn
// failure.
type IOError struct {
	Context string
	Err     error
}

func (e *IOError) Error() string {
	return xerrors.Errorf("io error (%s): %w", e.Context, e.Err).Error()
}
func (e *IOError) Unwrap() error { return e.Err }

// NetworkError signals an HTTP or git-clone failure.
type NetworkError struct {
	Context string
	Err     error
}

func (e *NetworkError) Error() string {
	return xerrors.Errorf("network error (%s): %w", e.Context, e.Err).Error()
}
func (e *NetworkError) Unwrap() error { return e.Err }

// CacheError signals a cache miss, a stale entry, or a corrupt entry.
type CacheError struct {
	Reason string
	Err    error
}

func (e *CacheError) Error() string {
	if e.Err == nil {
		return xerrors.Errorf("cache error: %s", e.Reason).Error()
	}
	return xerrors.Errorf("cache error (%s): %w", e.Reason, e.Err).Error()
}
func (e *CacheError) Unwrap() error { return e.Err }

// ConfigError signals an unknown dependency group, ambiguous ingestion
// options, options applied to a dialect that does not support them, or a
// multi-interpreter install-hook attempt.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return xerrors.Errorf("config error: %s", e.Reason).Error()
}

// UnsupportedError signals a non-POSIX host or an unsupported operator.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string {
	return xerrors.Errorf("unsupported: %s", e.Reason).Error()
}

// InternalError signals a broken invariant - something that should be
// unreachable given the contracts of the packages involved.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return xerrors.Errorf("internal error: %s", e.Reason).Error()
}
