package alts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(v int64) *int64 { return &v }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FingerprintIDs = []int{100, 101, 102, 103, 104}
	cfg.OnboardingID = 6
	return cfg
}

func TestExtractFingerprint_FiltersToConfiguredIDs(t *testing.T) {
	records := []Achievement{
		{ID: 100, CompletedAt: ts(1000)},
		{ID: 999, CompletedAt: ts(1100)},
		{ID: 102, CompletedAt: ts(1200)},
		{ID: 6, CompletedAt: ts(500)},
		{ID: 101, CompletedAt: ts(1300)},
	}

	fp, stamps := ExtractFingerprint(records, testConfig())

	assert.Equal(t, []Pair{
		{AchievementID: 100, Timestamp: 1000},
		{AchievementID: 101, Timestamp: 1300},
		{AchievementID: 102, Timestamp: 1200},
	}, fp.Pairs())
	assert.Equal(t, TimestampMap{100: 1000, 101: 1300, 102: 1200, 6: 500}, stamps)
}

func TestExtractFingerprint_OnboardingNeverInFingerprint(t *testing.T) {
	records := []Achievement{
		{ID: 6, CompletedAt: ts(42)},
		{ID: 100, CompletedAt: ts(1)},
	}

	fp, stamps := ExtractFingerprint(records, testConfig())

	assert.False(t, fp.Has(Pair{AchievementID: 6, Timestamp: 42}))
	assert.Equal(t, 1, fp.Len())
	got, ok := stamps[6]
	require.True(t, ok)
	assert.Equal(t, int64(42), got)
}

func TestExtractFingerprint_FirstOnboardingRecordWins(t *testing.T) {
	records := []Achievement{
		{ID: 6, CompletedAt: ts(42)},
		{ID: 6, CompletedAt: ts(10)},
	}

	_, stamps := ExtractFingerprint(records, testConfig())
	assert.Equal(t, int64(42), stamps[6])
}

func TestExtractFingerprint_SkipsNullAndZeroTimestamps(t *testing.T) {
	records := []Achievement{
		{ID: 100, CompletedAt: nil},
		{ID: 101, CompletedAt: ts(0)},
		{ID: 102, CompletedAt: ts(7)},
		{ID: 6, CompletedAt: ts(0)},
	}

	fp, stamps := ExtractFingerprint(records, testConfig())

	assert.Equal(t, []Pair{{AchievementID: 102, Timestamp: 7}}, fp.Pairs())
	assert.Equal(t, TimestampMap{102: 7}, stamps)
}

func TestExtractFingerprint_LaterNullClearsEarlierCompletion(t *testing.T) {
	records := []Achievement{
		{ID: 100, CompletedAt: ts(5)},
		{ID: 100, CompletedAt: nil},
	}

	fp, stamps := ExtractFingerprint(records, testConfig())
	assert.Equal(t, 0, fp.Len())
	assert.Empty(t, stamps)
}

func TestExtractFingerprint_Empty(t *testing.T) {
	fp, stamps := ExtractFingerprint(nil, testConfig())

	assert.Equal(t, 0, fp.Len())
	assert.NotNil(t, stamps)
	assert.Empty(t, stamps)
	assert.Equal(t, "", fp.String())
}

func TestNewFingerprint_DedupesAndSorts(t *testing.T) {
	fp := NewFingerprint(
		Pair{AchievementID: 3, Timestamp: 30},
		Pair{AchievementID: 1, Timestamp: 10},
		Pair{AchievementID: 3, Timestamp: 30},
		Pair{AchievementID: 2, Timestamp: 20},
	)

	assert.Equal(t, 3, fp.Len())
	assert.Equal(t, "1:10,2:20,3:30", fp.String())
}

func TestFingerprint_PairsIsACopy(t *testing.T) {
	fp := NewFingerprint(Pair{AchievementID: 1, Timestamp: 10})
	pairs := fp.Pairs()
	pairs[0].Timestamp = 99

	assert.Equal(t, "1:10", fp.String())
}

func TestCountCollection(t *testing.T) {
	assert.Equal(t, 0, CountCollection(nil))
	assert.Equal(t, 3, CountCollection(fakeCollection(3)))
}

type fakeCollection int

func (f fakeCollection) Len() int { return int(f) }
