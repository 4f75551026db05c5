package alts

import "github.com/groster/groster/internal/model"

// Counter is any collection payload that knows its item count.
type Counter interface {
	Len() int
}

// CountCollection returns the number of items in a pet or mount payload.
// A missing payload counts as zero.
func CountCollection(c Counter) int {
	if c == nil {
		return 0
	}
	return c.Len()
}

// Signature is the coarse (pets, mounts) collection signature of a character.
type Signature struct {
	Pets   int
	Mounts int
}

// Profile is the per-run working record of one character.
type Profile struct {
	model.CharacterIdentity
	Pets        int
	Mounts      int
	Fingerprint Fingerprint
	Timestamps  TimestampMap
	// Fetched is false when the achievement fetch failed. Such a profile
	// carries an empty fingerprint and always stays alone.
	Fetched bool
}

// Signature returns the collection signature.
func (p Profile) Signature() Signature {
	return Signature{Pets: p.Pets, Mounts: p.Mounts}
}

// Timestamp returns the completion time of achievement id, if recorded.
func (p Profile) Timestamp(id int) (int64, bool) {
	ts, ok := p.Timestamps[id]
	return ts, ok
}
