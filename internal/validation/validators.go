package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Class names must carry at least one non-whitespace rune; the engine
	// rejects empty names too, but catching it at the boundary gives the
	// frontend a clean 400.
	if err := Validate.RegisterValidation("classname", validateClassName); err != nil {
		panic(fmt.Sprintf("failed to register classname validator: %v", err))
	}
}

func validateClassName(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateClassID checks the mask-byte range for class ids.
func ValidateClassID(id int) error {
	if id < 1 || id > 255 {
		return fmt.Errorf("invalid class id: %d (must be between 1 and 255)", id)
	}
	return nil
}
