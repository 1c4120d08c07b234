package recorder

import (
	"crypto/rand"
)

// Job UIDs are short, human-readable identifiers shown in the client's job
// table and embedded in recorded filenames: four chars, a dash, four chars,
// drawn from an uppercase alphanumeric charset.
const (
	uidLength  = 9
	uidCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewJobUID generates a random job UID, e.g. "K7Q2-9XVD"
func NewJobUID() string {
	buf := make([]byte, uidLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails if the OS entropy source is broken
		panic(err)
	}

	out := make([]byte, uidLength)
	for i := range out {
		if i > 0 && (i+1)%5 == 0 {
			out[i] = '-'
			continue
		}
		out[i] = uidCharset[int(buf[i])%len(uidCharset)]
	}
	return string(out)
}
