package xqueue

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// KeyLen is the length of every key returned by MakeKey.
const KeyLen = sha256.Size * 2

// KeyMaker hashes a seed with the time returned by Now.
type KeyMaker struct {
	Now func() time.Time
}

// Make returns the hex hash of seed followed by the current Unix time in
// nanoseconds. An empty seed is allowed.
func (m KeyMaker) Make(seed string) string {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write([]byte(strconv.FormatInt(now().UnixNano(), 10)))

	return hex.EncodeToString(h.Sum(nil))
}

// MakeKey returns a secret key, typically used as lms_key.
func MakeKey(seed string) string {
	return KeyMaker{}.Make(seed)
}
