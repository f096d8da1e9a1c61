package shared

import (
	"errors"
	"fmt"
)

type ErrorSource int

const (
	ErrorSourceProvider ErrorSource = iota
	ErrorSourceConversation
	ErrorSourceStore
	ErrorSourceSystem
	ErrorSourceUser
	ErrorSourceUnknown
)

type GatherError struct {
	Source  ErrorSource
	Message string
	Err     error
}

func Errorf(source ErrorSource, format string, a ...any) *GatherError {
	return &GatherError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
	}
}

func Wrap(source ErrorSource, err error, format string, a ...any) *GatherError {
	return &GatherError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
		Err:     err,
	}
}

func (e *GatherError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
}

func (e *GatherError) Unwrap() error {
	return e.Err
}

func (e *GatherError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func (e *GatherError) As(target interface{}) bool {
	return errors.As(e.Err, target)
}
