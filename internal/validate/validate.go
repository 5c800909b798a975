package validate

import (
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxQty only keeps unit counts inside int32 so sums across lines cannot
// overflow; stock is the real bound on a line.
const MaxQty = math.MaxInt32

var (
	reEmail  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	rePhone  = regexp.MustCompile(`^[0-9+() -]{6,25}$`)
	reTaxID  = regexp.MustCompile(`^[0-9A-Za-z.-]{6,20}$`)
	rePostal = regexp.MustCompile(`^[0-9A-Za-z -]{3,10}$`)
	reCode   = regexp.MustCompile(`^[A-Z0-9_-]{1,40}$`)

	strict = bluemonday.StrictPolicy()
)

// Text strips markup from buyer-supplied free text and clamps its length.
func Text(s string, max int) string {
	s = html.UnescapeString(strict.Sanitize(strings.TrimSpace(s)))
	s = strings.TrimSpace(s)
	if max > 0 && len([]rune(s)) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return strings.ToLower(s), reEmail.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = Text(s, 0)
	if s == "" || len([]rune(s)) > 80 {
		return "", false
	}
	return s, true
}

// ID validates a simple resource identifier (product/coupon ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func Qty(n int) bool { return n >= 1 && n <= MaxQty }

// Phone, TaxID and PostalCode accept empty input; they are optional fields.
func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s == "" || rePhone.MatchString(s)
}

func TaxID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s == "" || reTaxID.MatchString(s)
}

func PostalCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s == "" || rePostal.MatchString(s)
}

// CouponCode normalises a coupon code to its stored form.
func CouponCode(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reCode.MatchString(s)
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	return l >= 8 && l <= 72
}
