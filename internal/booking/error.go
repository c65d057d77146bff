package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNextID              = errors.New("get next reference from generator")
	ErrLogic               = errors.New("logic error")
	ErrRecordNotFound      = errors.New("record not found")
	ErrPropertyNotFound    = errors.New("property not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBufferEntryNotFound = errors.New("buffer entry not found")
	ErrBufferEntryResolved = errors.New("buffer entry already resolved")
	ErrAlreadyCancelled    = errors.New("booking already cancelled")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrPropertyNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrBufferEntryNotFound)
}

type Action string

const (
	ActionPay    Action = "pay"
	ActionCancel Action = "cancel"
	ActionExpire Action = "expire"
)

// TransitionError is returned when the booking status does not allow the action.
type TransitionError struct {
	Reference string
	From      Status
	Action    Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot %s from %s", e.Reference, e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	if e.From == StatusCancelled && e.Action == ActionCancel {
		return ErrAlreadyCancelled
	}

	return nil
}

func IsTransitionError(err error) *TransitionError {
	if err == nil {
		return nil
	}

	var transitionErr *TransitionError

	if errors.As(err, &transitionErr) {
		return transitionErr
	}

	return nil
}

// PolicyError is a business rule refusal. Rule is a stable machine-readable name.
type PolicyError struct {
	Rule    string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func IsPolicyError(err error) *PolicyError {
	if err == nil {
		return nil
	}

	var policyErr *PolicyError

	if errors.As(err, &policyErr) {
		return policyErr
	}

	return nil
}

type InputError struct {
	fields map[string][]string
}

func newInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) fieldsCount() int {
	return len(ie.fields)
}

func (ie *InputError) addError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

func (ie *InputError) orNil() error {
	if ie.fieldsCount() > 0 {
		return ie
	}

	return nil
}

func (ie *InputError) Error() string {
	return fmt.Sprintf("%+v", ie.fields)
}

func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}
