package common

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// ValidateStruct checks s against its validate struct tags. Config loading and
// storage writes share this validator.
func ValidateStruct(s any) error {
	return validate.Struct(s)
}
