package shared

import (
	"fmt"
	"regexp"
)

var usPhoneNumber = regexp.MustCompile(`^\+1\d{10}$`)

// ValidatePhoneNumber checks that number is a U.S. number in E.164 form (+1 followed by ten digits).
func ValidatePhoneNumber(number string) error {
	if !usPhoneNumber.MatchString(number) {
		return fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, number)
	}
	return nil
}
