package render

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var referralCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6,10}$`)

func newValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("referralcode", validateReferralCode)
	validate.RegisterTagNameFunc(useJSONTagNames)

	return validate
}

// Report field names by their json tag instead of struct name
// Look at documentation of 'RegisterTagNameFunc' for more details
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Codes are stored uppercase but accepted in any case
func validateReferralCode(fl validator.FieldLevel) bool {
	return referralCodePattern.MatchString(fl.Field().String())
}
