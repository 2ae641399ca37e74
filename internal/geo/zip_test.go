package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalZip_PreservesLeadingZeros(t *testing.T) {
	for _, raw := range []string{"00501", " 00501", "00501 ", "\t00501\n"} {
		assert.Equal(t, "00501", CanonicalZip(raw), "input %q", raw)
	}
	assert.Equal(t, "0 1", CanonicalZip("  0 1 "), "inner whitespace is kept")
}

func TestCanonicalZip_Numbers(t *testing.T) {
	assert.Equal(t, "90001", CanonicalZip(float64(90001)))
	assert.Equal(t, "90001", CanonicalZip(json.Number("90001")))
	assert.Equal(t, "90001", CanonicalZip(90001))
	assert.Equal(t, "", CanonicalZip(nil))
}

func TestCanonicalZip_DecodedJSONArray(t *testing.T) {
	var values []interface{}
	assert.NoError(t, json.Unmarshal([]byte(`[90001, "90002 ", " 00501", null]`), &values))

	set := NewMembershipSet(values)
	assert.Len(t, set, 3)
	assert.True(t, set.Has("90001"))
	assert.True(t, set.Has("90002"))
	assert.True(t, set.Has("00501"))
	assert.False(t, set.Has(""))
}
