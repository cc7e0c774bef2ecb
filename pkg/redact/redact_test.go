package redact

import (
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestRedact_PAN(t *testing.T) {
	r := Default()

	cases := []struct {
		input    string
		expected string
	}{
		{"Card number 4111111111111111 charged", "Card number [PAN_REDACTED] charged"},
		{"PAN: 378282246310005", "PAN: [PAN_REDACTED]"},
		{"No card here", "No card here"},
		{"123456789012", "123456789012"},           // 12 digits, too short
		{"12345678901234567890", "12345678901234567890"}, // 20 digits, too long
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, r.Redact(tc.input), "input: %s", tc.input)
	}
}

func TestRedact_CVV(t *testing.T) {
	r := Default()

	cases := []struct {
		input    string
		expected string
	}{
		{"cvv: 123", "cvv: [CVV_REDACTED]"},
		{"CVV 9876", "CVV [CVV_REDACTED]"},
		{"card verification value: 123", "card verification value: [CVV_REDACTED]"},
		{"Security code is 999", "Security code is 999"}, // no cvv marker
		{"Code 12", "Code 12"},                           // too short
		{"CVV: 12345", "CVV: 12345"},                     // too long
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, r.Redact(tc.input), "input: %s", tc.input)
	}
}

func TestRedact_Expiry(t *testing.T) {
	r := Default()

	cases := []struct {
		input    string
		expected string
	}{
		{"expires 12/25", "expires [EXPIRY_REDACTED]"},
		{"01/24 on the front", "[EXPIRY_REDACTED] on the front"},
		{"Year 2025", "Year 2025"},
		{"Month 12", "Month 12"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, r.Redact(tc.input), "input: %s", tc.input)
	}
}

func TestRedact_Email(t *testing.T) {
	r := Default()

	cases := []struct {
		input    string
		expected string
	}{
		{"Contact alice@example.com for details", "Contact [EMAIL_REDACTED] for details"},
		{"bob.smith+test@sub.domain.org", "[EMAIL_REDACTED]"},
		{"Invalid email user@", "Invalid email user@"},
		{"Not an email", "Not an email"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, r.Redact(tc.input), "input: %s", tc.input)
	}
}

func TestRedact_Mixed(t *testing.T) {
	r := Default()

	input := "card 4111111111111111 cvv: 123 exp 12/25 owner alice@example.com"
	expected := "card [PAN_REDACTED] cvv: [CVV_REDACTED] exp [EXPIRY_REDACTED] owner [EMAIL_REDACTED]"
	assert.Equal(t, expected, r.Redact(input))
}

func TestRedact_Empty(t *testing.T) {
	r := Default()
	assert.Equal(t, "", r.Redact(""))

	var nilRedactor *Redactor
	assert.Equal(t, "safe", nilRedactor.Redact("safe"))
}

func TestRedact_CustomRules(t *testing.T) {
	r := New() // no rules: everything passes through
	assert.Equal(t, "cvv: 123", r.Redact("cvv: 123"))
}

// Property: redaction is idempotent — a second pass changes nothing.
func TestRedact_Idempotent(t *testing.T) {
	r := Default()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("redact(redact(s)) == redact(s)", prop.ForAll(
		func(s string) bool {
			once := r.Redact(s)
			return r.Redact(once) == once
		},
		gen.AnyString(),
	))

	panRun := regexp.MustCompile(`\b\d{13,19}\b`)
	properties.Property("no PAN-length digit run survives", prop.ForAll(
		func(prefix, suffix string) bool {
			s := prefix + " 4111111111111111 " + suffix
			return !panRun.MatchString(r.Redact(s))
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
