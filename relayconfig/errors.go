package relayconfig

import "errors"

// ErrRequiredFieldMissing is returned by Validate when a config field
// that has no safe default (host, user_security_scope) is empty.
var ErrRequiredFieldMissing = errors.New("required field missing")
