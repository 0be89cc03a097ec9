package validation

import "strings"

// Errors collects every failed rule so clients can show them all at once.
type Errors []string

func (e Errors) Error() string {
	return strings.Join(e, "; ")
}

// Check appends err's message when err is non-nil.
func (e *Errors) Check(err error) {
	if err != nil {
		*e = append(*e, err.Error())
	}
}

func (e *Errors) Add(msg string) {
	*e = append(*e, msg)
}

// Err returns nil when nothing failed.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
