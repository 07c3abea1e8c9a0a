package domain

import (
	"bytes"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// rawjson: a present, non-null JSON value.
	_ = v.RegisterValidation("rawjson", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Slice {
			return false
		}
		b := bytes.TrimSpace(f.Bytes())
		return len(b) > 0 && !bytes.Equal(b, []byte("null"))
	})
	return v
}

// Validate checks the struct tags of an inbound message.
func Validate(msg Message) error {
	return validate.Struct(msg)
}
