package session

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is wrapped by ValidateName failures.
var ErrInvalidName = errors.New("invalid session name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks a name resolved from --session, $WPPCRM_SESSION or
// default_session. Names become directory names under sessions/.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q (set by --session, WPPCRM_SESSION or default_session): use 1-64 characters of a-z, 0-9, _ or -", ErrInvalidName, name)
	}
	return nil
}
