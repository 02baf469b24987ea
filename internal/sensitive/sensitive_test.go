package sensitive

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestHasCardNumber(t *testing.T) {
	assert.True(t, HasCardNumber("4532015112830366"))
	assert.True(t, HasCardNumber("5425233430109903"))
	assert.True(t, HasCardNumber("374245455400126"))
	assert.True(t, HasCardNumber("card 4532 0151 1283 0366 exp 09/29"))
	assert.True(t, HasCardNumber("4532-0151-1283-0366"))

	assert.False(t, HasCardNumber("1234567890123456"))
	assert.False(t, HasCardNumber("1234"))
	assert.False(t, HasCardNumber("12345678901234567890"))
	assert.False(t, HasCardNumber("4532  0151 1283 0366"), "double space splits the run")
}

func TestHasSSN(t *testing.T) {
	assert.True(t, HasSSN("123-45-6789"))
	assert.True(t, HasSSN("123456789"))
	assert.False(t, HasSSN("12-34-567890"))
}

func TestHasPhone(t *testing.T) {
	assert.True(t, HasPhone("555-123-4567"))
	assert.True(t, HasPhone("(555) 123-4567"))
	assert.False(t, HasPhone("5551234"))
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive("4532015112830366"))
	assert.True(t, IsSensitive("SSN: 123-45-6789"))
	assert.True(t, IsSensitive("Call me at 555-123-4567"))
	assert.False(t, IsSensitive("Just regular text"))
	assert.False(t, IsSensitive("order 1234567890123456 shipped"))
}

func TestLuhn(t *testing.T) {
	assert.True(t, Luhn("79927398713"))
	assert.False(t, Luhn("79927398710"))
	assert.False(t, Luhn(""))
	assert.False(t, Luhn("12a4"))
}

// checkDigit returns the digit that makes body+digit pass Luhn.
func checkDigit(body string) byte {
	for d := byte('0'); d <= '9'; d++ {
		if Luhn(body + string(d)) {
			return d
		}
	}
	panic("unreachable")
}

func digitString(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.IntRange(0, 9)).Map(func(ds []int) string {
		var b strings.Builder
		for _, d := range ds {
			b.WriteByte(byte('0' + d))
		}
		return b.String()
	})
}

func TestCardNumberProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("checksummed runs are sensitive", prop.ForAll(
		func(body string) bool {
			card := body + string(checkDigit(body))
			return IsSensitive("paid with " + card + " today")
		},
		digitString(15),
	))

	properties.Property("same-length runs failing the checksum are not", prop.ForAll(
		func(body string, offset int) bool {
			good := checkDigit(body)
			bad := byte('0' + (int(good-'0')+offset)%10)
			return !IsSensitive("order " + body + string(bad) + " shipped")
		},
		digitString(15),
		gen.IntRange(1, 9),
	))

	properties.TestingRun(t)
}
