package core

import (
	"fmt"
	"reflect"
	"time"
)

const maxAddressLength = 255

// ValidateAddress validates an event bus address
func ValidateAddress(address string) error {
	if address == "" {
		return &EventBusError{Code: "INVALID_ADDRESS", Message: "address cannot be empty"}
	}
	if len(address) > maxAddressLength {
		return &EventBusError{Code: "INVALID_ADDRESS", Message: "address too long (max 255 characters)"}
	}
	return nil
}

// ValidateTimeout validates a request timeout
func ValidateTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return &EventBusError{Code: "INVALID_TIMEOUT", Message: "timeout must be positive"}
	}
	if timeout > 5*time.Minute {
		return &EventBusError{Code: "INVALID_TIMEOUT", Message: "timeout too large (max 5 minutes)"}
	}
	return nil
}

// ValidateVerticle validates a verticle before deployment
func ValidateVerticle(verticle Verticle) error {
	if isNil(verticle) {
		return &EventBusError{Code: "INVALID_VERTICLE", Message: "verticle cannot be nil"}
	}
	return nil
}

// ValidateBody validates a message body
func ValidateBody(body interface{}) error {
	if isNil(body) {
		return &EventBusError{Code: "INVALID_BODY", Message: "body cannot be nil"}
	}
	return nil
}

// failFast panics with err when it is not nil. Used where the API has no
// error return, such as EventBus.Consumer.
func failFast(err error) {
	if err != nil {
		panic(err)
	}
}

func failFastNotNil(v interface{}, name string) {
	if isNil(v) {
		panic(&EventBusError{Code: "INVALID_ARGUMENT", Message: fmt.Sprintf("%s cannot be nil", name)})
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
