package aliases

import "fmt"

// NotFoundError is returned when an alias is not in the store.
type NotFoundError struct {
	Alias string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("'%s': not found", e.Alias)
}

// DuplicateAliasError is returned when adding an alias that already exists.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("'%s': already exists", e.Alias)
}

// InvalidFieldError is returned for values that cannot be stored in the
// tab-delimited file.
type InvalidFieldError struct {
	Field string
	Value string
}

func (e *InvalidFieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: must not be empty", e.Field)
	}
	return fmt.Sprintf("%s %q: must not contain tabs or newlines", e.Field, e.Value)
}
