package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CanonicalZip normalizes a raw ZIP value into the key used by every join.
// The value is stringified and trimmed; digits are never reformatted, so
// leading zeros in string input survive. Numbers are written in plain
// decimal and nil becomes the empty string.
func CanonicalZip(v interface{}) string {
	switch z := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(z)
	case json.Number:
		if f, err := z.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.TrimSpace(z.String())
	case float64:
		return strconv.FormatFloat(z, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(z), 'f', -1, 32)
	case int:
		return strconv.Itoa(z)
	case int64:
		return strconv.FormatInt(z, 10)
	case bool:
		return strconv.FormatBool(z)
	case fmt.Stringer:
		return strings.TrimSpace(z.String())
	}

	return strings.TrimSpace(fmt.Sprint(v))
}

// MembershipSet is the set of canonical ZIP codes in the county of interest.
type MembershipSet map[string]struct{}

// NewMembershipSet canonicalizes every value. Empty keys are dropped.
func NewMembershipSet(values []interface{}) MembershipSet {
	set := make(MembershipSet, len(values))
	for _, v := range values {
		if zip := CanonicalZip(v); zip != "" {
			set[zip] = struct{}{}
		}
	}
	return set
}

// Has reports whether zip, already canonical, belongs to the set.
func (m MembershipSet) Has(zip string) bool {
	_, ok := m[zip]
	return ok
}
