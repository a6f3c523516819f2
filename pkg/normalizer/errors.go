package normalizer

import "errors"

// ValidationError reports an intake value that cannot be stored.
type ValidationError struct {
	Field  string
	reason error
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.reason.Error()
	}
	return e.Field + ": " + e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func Invalid(field, reason string) ValidationError {
	return ValidationError{Field: field, reason: errors.New(reason)}
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
