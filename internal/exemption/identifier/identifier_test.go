package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"de 123 456 789":  "DE123456789",
		"DE-123.456-789":  "DE123456789",
		"\tfr12345678901": "FR12345678901",
		"   ":             "",
		"":                "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}
}

func TestSplit(t *testing.T) {
	t.Run("splits prefix and body", func(t *testing.T) {
		id, ok := Split("DE123456789")
		assert.True(t, ok)
		assert.Equal(t, Identifier{CountryPrefix: "DE", Body: "123456789"}, id)
		assert.Equal(t, "DE123456789", id.String())
	})

	t.Run("greek ISO prefix is aliased to the registry prefix", func(t *testing.T) {
		id, ok := Split("GR123456789")
		assert.True(t, ok)
		assert.Equal(t, "EL", id.CountryPrefix)
		assert.Equal(t, "GR", id.Country())
	})

	t.Run("rejects missing letter prefix", func(t *testing.T) {
		_, ok := Split("123456789")
		assert.False(t, ok)
		_, ok = Split("D")
		assert.False(t, ok)
	})
}

func TestCountryOf(t *testing.T) {
	assert.Equal(t, "GR", CountryOf("EL"))
	assert.Equal(t, "GB", CountryOf("XI"))
	assert.Equal(t, "DE", CountryOf("DE"))
}

func TestPrefixOf(t *testing.T) {
	assert.Equal(t, "EL", PrefixOf("gr 123"))
	assert.Equal(t, "", PrefixOf("12"))
}

func TestFormats(t *testing.T) {
	valid := []string{
		"ATU12345678", "BE0123456789", "BG123456789", "CY12345678X", "CZ12345678",
		"DE123456789", "DK12345678", "EE123456789", "EL123456789", "ESA1234567B",
		"FI12345678", "FR12345678901", "FRAB123456789", "HR12345678901", "HU12345678",
		"IE1234567WA", "IE1A12345W", "IT12345678901", "LT123456789", "LU12345678",
		"LV12345678901", "MT12345678", "NL123456789B01", "PL1234567890", "PT123456789",
		"RO12", "SE123456789012", "SI12345678", "SK1234567890", "XI123456789", "XIGD123",
	}
	for _, v := range valid {
		id, ok := Split(v)
		if assert.True(t, ok, v) {
			assert.True(t, formats[id.CountryPrefix].MatchString(id.Body), v)
		}
	}

	invalid := []string{"DE12345678", "ATX12345678", "BE2123456789", "FRI1123456789", "NL123456789A01"}
	for _, v := range invalid {
		id, _ := Split(v)
		assert.False(t, formats[id.CountryPrefix].MatchString(id.Body), v)
	}
}
