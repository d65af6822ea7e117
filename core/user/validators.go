package user

import (
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var (
	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = "Password must be at least 6 characters long"

	pwdMatchTag  = "pwdmatch"
	pwdMatchText = "Passwords do not match"

	allRolesTag  = "allroles"
	allRolesText = "invalid role"
)

// InitValidators registers the user validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(newUserStructValidation, NewUser{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdMatchTag, pwdMatchText)
}

// Custom Validators

func allRolesValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// newUserStructValidation checks the password pair once every field is filled in:
// - confirmation equal to password
// - minLen: 6
func newUserStructValidation(sl validator.StructLevel) {
	nu, ok := sl.Current().Interface().(NewUser)
	if !ok {
		return
	}
	if nu.Name == "" || nu.Email == "" || nu.Password == "" || nu.PasswordConfirm == "" {
		return
	}
	if nu.Password != nu.PasswordConfirm {
		sl.ReportError(nu.PasswordConfirm, "password_confirm", "PasswordConfirm", pwdMatchTag, "")
		return
	}
	if utf8.RuneCountInString(nu.Password) < pwdMinLen {
		sl.ReportError(nu.Password, "password", "Password", pwdMinLenTag, "")
	}
}
