package validation

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

const InvalidPhoneMessage = "Please enter a valid US phone number"

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone converts a US number to E.164 (+1XXXXXXXXXX). Ten digits get
// a +1 prefix, eleven digits must already start with 1.
func NormalizePhone(raw string) (string, error) {
	d := digitsOnly(raw)
	switch {
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	}
	return "", New("customer_phone", InvalidPhoneMessage)
}

func IsUSPhone(raw string) bool {
	_, err := NormalizePhone(raw)
	return err == nil
}

// FormatPhoneNational renders a normalized number as "(555) 123-4567" for
// display. Unparseable input is returned unchanged.
func FormatPhoneNational(e164 string) string {
	p, err := libphonenumber.Parse(e164, "US")
	if err != nil {
		return e164
	}
	return libphonenumber.Format(p, libphonenumber.NATIONAL)
}
