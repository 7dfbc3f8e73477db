package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	expiryPattern  = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cardSeparators = strings.NewReplacer(" ", "", "-", "")

	labels = map[string]string{
		"first_name":      "First name",
		"last_name":       "Last name",
		"email":           "Email",
		"phone":           "Phone",
		"address":         "Address",
		"city":            "City",
		"state":           "State",
		"postal_code":     "Postal code",
		"country":         "Country",
		"method":          "Payment method",
		"card_number":     "Card number",
		"cardholder_name": "Cardholder name",
		"expiry":          "Expiry date",
		"cvv":             "CVV",
	}
)

// Validator checks the checkout forms and turns failures into per-field
// messages keyed by the JSON field name.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return domain.PaymentMethod(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	// card numbers may be grouped with spaces or dashes
	_ = v.RegisterValidation("card_number", func(fl validator.FieldLevel) bool {
		digits := cardSeparators.Replace(fl.Field().String())
		return v.Var(digits, "numeric,min=13,max=19,luhn_checksum") == nil
	})
	_ = v.RegisterValidation("card_expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func (v *Validator) Shipping(info domain.ShippingInfo) error {
	return v.check(info)
}

func (v *Validator) Payment(info domain.PaymentInfo) error {
	return v.check(info)
}

func (v *Validator) check(form any) error {
	err := v.v.Struct(form)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	label, ok := labels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required", "required_if", "notblank":
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "payment_method":
		return label + " is not supported"
	case "card_number":
		return label + " is invalid"
	case "card_expiry":
		return label + " must be in MM/YY format"
	case "numeric", "min", "max":
		return label + " must be 3 or 4 digits"
	}
	return fmt.Sprintf("%s is invalid (%s)", label, fe.Tag())
}
