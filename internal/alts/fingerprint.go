package alts

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Achievement is one completion record from a character's achievement list.
type Achievement struct {
	ID          int
	CompletedAt *int64 // epoch millis, nil when not completed
}

// Pair is one fingerprint entry.
type Pair struct {
	AchievementID int
	Timestamp     int64
}

// Fingerprint is a set of achievement completions. The set form is used for
// comparisons; pairs holds the same entries sorted for display.
type Fingerprint struct {
	set   map[Pair]struct{}
	pairs []Pair
}

// NewFingerprint builds a fingerprint from pairs, dropping duplicates.
func NewFingerprint(pairs ...Pair) Fingerprint {
	fp := Fingerprint{set: make(map[Pair]struct{}, len(pairs))}
	for _, p := range pairs {
		if _, ok := fp.set[p]; ok {
			continue
		}
		fp.set[p] = struct{}{}
		fp.pairs = append(fp.pairs, p)
	}
	slices.SortFunc(fp.pairs, func(a, b Pair) int {
		return cmp.Or(
			cmp.Compare(a.AchievementID, b.AchievementID),
			cmp.Compare(a.Timestamp, b.Timestamp),
		)
	})
	return fp
}

// Len returns the number of entries.
func (f Fingerprint) Len() int {
	return len(f.pairs)
}

// Has reports whether p is part of the fingerprint.
func (f Fingerprint) Has(p Pair) bool {
	_, ok := f.set[p]
	return ok
}

// Pairs returns the entries sorted by achievement id.
func (f Fingerprint) Pairs() []Pair {
	return slices.Clone(f.pairs)
}

// String renders the canonical form, e.g. "2143:1600000000000,9598:1610000000000".
func (f Fingerprint) String() string {
	var sb strings.Builder
	for i, p := range f.pairs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(p.AchievementID))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(p.Timestamp, 10))
	}
	return sb.String()
}

// TimestampMap maps achievement id to completion time in epoch millis.
// Achievements without a completion time are absent.
type TimestampMap map[int]int64

// ExtractFingerprint derives the fingerprint and timestamp map of one
// character. The onboarding timestamp lands in the map but never in the
// fingerprint. An empty achievement list yields empty results.
func ExtractFingerprint(records []Achievement, cfg Config) (Fingerprint, TimestampMap) {
	cfg = cfg.withDefaults()
	ids := cfg.fingerprintSet()

	timestamps := make(TimestampMap)
	onboardingSeen := false
	for _, rec := range records {
		if rec.ID == cfg.OnboardingID {
			// first record wins
			if !onboardingSeen {
				onboardingSeen = true
				if rec.CompletedAt != nil && *rec.CompletedAt != 0 {
					timestamps[rec.ID] = *rec.CompletedAt
				}
			}
			continue
		}
		if _, ok := ids[rec.ID]; !ok {
			continue
		}
		if rec.CompletedAt == nil || *rec.CompletedAt == 0 {
			delete(timestamps, rec.ID)
			continue
		}
		timestamps[rec.ID] = *rec.CompletedAt
	}

	pairs := make([]Pair, 0, len(timestamps))
	for id, ts := range timestamps {
		if id == cfg.OnboardingID {
			continue
		}
		pairs = append(pairs, Pair{AchievementID: id, Timestamp: ts})
	}
	return NewFingerprint(pairs...), timestamps
}
