package api

import "errors"

// ErrUnauthorized means the session cookie is missing, expired, or
// rejected. The client cannot recover without a fresh login.
var ErrUnauthorized = errors.New("session unauthorized")
