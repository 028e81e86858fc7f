package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint builds a stable cache key from the parameters that identify a
// cached page (collection id, filter string, cursor, batch size). The hash
// keeps keys short and uniform regardless of how large the inputs are.
func Fingerprint(parts ...string) string {
	d := xxhash.New()
	for _, part := range parts {
		// Length prefix so ("ab","c") and ("a","bc") hash differently.
		d.WriteString(strconv.Itoa(len(part)))
		d.WriteString(":")
		d.WriteString(part)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
