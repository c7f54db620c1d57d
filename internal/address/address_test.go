package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStreet(t *testing.T) {
	tests := []struct {
		street, street2 string
		wantName        string
		wantNumber      int
		wantAddition    string
	}{
		{"Dorpsstraat 12", "", "Dorpsstraat", 12, ""},
		{"Dorpsstraat 12", "a", "Dorpsstraat", 12, "a"},
		{"Keizersgracht   271 B", "", "Keizersgracht", 271, "B"},
		{"Hoofdweg 1-3", "", "Hoofdweg", 1, "-3"},
		{"Lindelaan", "", "Lindelaan", 0, ""},
		{"", "", "", 0, ""},
	}

	for _, tt := range tests {
		name, number, addition := SplitStreet(tt.street, tt.street2)
		assert.Equal(t, tt.wantName, name, "street=%q street2=%q", tt.street, tt.street2)
		assert.Equal(t, tt.wantNumber, number, "street=%q", tt.street)
		assert.Equal(t, tt.wantAddition, addition, "street=%q", tt.street)
	}
}

func TestSplitStreetTruncatesLongNames(t *testing.T) {
	long := "Burgemeester Van Alphenstraat Langedijk 12"
	name, number, _ := SplitStreet(long, "")
	assert.Len(t, name, 30)
	assert.Equal(t, 12, number)
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("Jan van der Berg")
	assert.Equal(t, "Jan", first)
	assert.Equal(t, "van der Berg", last)

	first, last = SplitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Equal(t, "", last)

	first, last = SplitName("   ")
	assert.Equal(t, "", first)
	assert.Equal(t, "", last)
}

func TestSanitizeOrderNumber(t *testing.T) {
	// Already compliant input survives untouched.
	assert.Equal(t, "SO0001", SanitizeOrderNumber("SO0001", 1))

	// Lowercase, spaces and odd characters are cleaned up.
	assert.Equal(t, "SO20241", SanitizeOrderNumber("so 2024/1", 9))

	// Empty (or fully stripped) input synthesizes from the fallback id.
	assert.Equal(t, "SO42", SanitizeOrderNumber("", 42))
	assert.Equal(t, "SO7", SanitizeOrderNumber("!!", 7))

	// Letters-only input gets a numeric suffix, never survives as-is.
	got := SanitizeOrderNumber("ABCDEFGH", 7)
	assert.Equal(t, "ABCDEFGH07", got)
	assert.LessOrEqual(t, len(got), 10)

	// Overlong letters-only input is pre-trimmed to 8 before the suffix.
	assert.Equal(t, "ABCDEFGH03", SanitizeOrderNumber("ABCDEFGHIJKLM", 3))

	// The last 10 characters win for long numbers.
	assert.Equal(t, "2024-00099", SanitizeOrderNumber("WEB2024-00099", 5))
}

func TestTrackingURL(t *testing.T) {
	template := "https://www.postnl.nl/tracktrace/?B=%s&P=%s"
	got := TrackingURL(template, "3SABCD000111222", "1234 AB")
	assert.Equal(t, "https://www.postnl.nl/tracktrace/?B=3SABCD000111222&P=1234AB", got)

	assert.Equal(t, "", TrackingURL(template, "", "1234AB"))
}
