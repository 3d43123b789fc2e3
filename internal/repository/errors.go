// Package repository runs typed query specifications against the relational
// store and exposes table-level repositories built on top of them.
//
// Errors follow the shared taxonomy in package errs: validation failures are
// returned before any statement runs, backend integrity failures surface as
// *errs.ConstraintViolation and connectivity failures as
// *errs.BackendUnavailable.  The sentinel values below cover the remaining
// cases that handlers need to distinguish.
package repository

import "errors"

// ErrInvalidCredentials is returned by UserRepo.Authenticate when the
// username is unknown or the password does not match.  The two cases are
// deliberately indistinguishable; handlers should translate this into an
// HTTP 401 response.
var ErrInvalidCredentials = errors.New("invalid credentials")
