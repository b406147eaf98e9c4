// Package rowid generates the opaque, lexicographically time-ordered
// 128-bit _row_id system column (spec §3). satori/go.uuid (the
// teacher's UUID dependency) supplies the random/version bytes; the
// timestamp is re-encoded big-endian up front so that two ids compare
// lexicographically in time order, which a raw UUIDv1 (time_low first)
// does not guarantee.
package rowid

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	uuid "github.com/satori/go.uuid"
)

// New returns a new row id: 8 bytes of big-endian nanosecond timestamp
// followed by 8 random bytes drawn from a fresh v4 UUID, hex-encoded.
// Two ids generated at increasing t compare lexicographically in that
// order; ids generated within the same nanosecond fall back to the
// random suffix, which carries no ordering guarantee (acceptable: the
// spec requires ids be unique, and ordering only within observable
// timestamp resolution).
func New(t time.Time) string {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(t.UnixNano()))
	random := uuid.NewV4()
	copy(buf[8:], random.Bytes()[:8])
	return hex.EncodeToString(buf[:])
}
