package roster

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/groster/groster/internal/alts"
	"github.com/groster/groster/internal/model"
	"github.com/groster/groster/internal/report"
	"github.com/groster/groster/internal/store"
	"github.com/groster/groster/pkg/blizzard"
)

var testKey = model.GuildKey{Region: "eu", Realm: "terokkar", Guild: "darq-side-of-the-moon"}

func testEngine(t *testing.T) *alts.Engine {
	t.Helper()
	e, err := alts.NewEngine(testAltsConfig())
	require.NoError(t, err)
	return e
}

func testAltsConfig() alts.Config {
	cfg := alts.DefaultConfig()
	cfg.FingerprintIDs = []int{100, 101, 102, 103, 104}
	return cfg
}

func member(id int64, name, realm string, rank int) blizzard.GuildMember {
	return blizzard.GuildMember{
		Character: blizzard.RosterCharacter{
			ID:            id,
			Name:          name,
			Level:         80,
			Realm:         blizzard.RealmRef{Slug: realm},
			PlayableClass: blizzard.Ref{ID: 1},
			PlayableRace:  blizzard.Ref{ID: 2},
		},
		Rank: rank,
	}
}

func rosterFixture(t *testing.T, members ...blizzard.GuildMember) *blizzard.GuildRoster {
	t.Helper()
	r := &blizzard.GuildRoster{Members: members}
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	r.Raw = raw
	return r
}

// achievementsFixture completes every id at a timestamp derived from seed,
// plus the onboarding achievement at onboarding.
func achievementsFixture(t *testing.T, seed, onboarding int64, ids ...int) *blizzard.Achievements {
	t.Helper()
	a := &blizzard.Achievements{TotalQuantity: len(ids) + 1, TotalPoints: 10 * (len(ids) + 1)}
	for _, id := range ids {
		ts := seed*100000 + int64(id)
		a.Achievements = append(a.Achievements, blizzard.AchievementEntry{ID: id, CompletedTimestamp: &ts})
	}
	a.Achievements = append(a.Achievements, blizzard.AchievementEntry{ID: alts.DefaultOnboardingID, CompletedTimestamp: &onboarding})
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	a.Raw = raw
	return a
}

func collectionFixture(t *testing.T, key string, n int) *blizzard.Collection {
	t.Helper()
	raw := `{"` + key + `":[` + strings.TrimSuffix(strings.Repeat("{},", n), ",") + `]}`
	var c blizzard.Collection
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	c.Raw = []byte(raw)
	return &c
}

func profileFixture(id int64, name string, ilvl int, lastLogin int64) *blizzard.CharacterProfile {
	return &blizzard.CharacterProfile{
		ID:                 id,
		Name:               name,
		EquippedItemLevel:  ilvl,
		LastLoginTimestamp: lastLogin,
		Raw:                json.RawMessage(`{"id":1}`),
	}
}

// guildFixture wires a guild of four characters: Zed shares four of Amy's
// five fingerprint completions and joined later, Bob is unrelated and Lost
// cannot be fetched. A fifth roster entry has no realm and is skipped.
func guildFixture(t *testing.T) *mockBlizzardClient {
	t.Helper()
	c := &mockBlizzardClient{}

	c.On("PlayableClasses", mock.Anything).Return([]blizzard.Ref{{ID: 1, Name: "Warrior"}}, nil).Once()
	c.On("PlayableRaces", mock.Anything).Return([]blizzard.Ref{{ID: 2, Name: "Orc"}}, nil).Once()
	c.On("GuildRoster", mock.Anything, "terokkar", "darq-side-of-the-moon").Return(rosterFixture(t,
		member(1, "Zed", "terokkar", 6),
		member(2, "Amy", "terokkar", 0),
		member(3, "Bob", "terokkar", 3),
		member(4, "Lost", "terokkar", 3),
		member(5, "Nowhere", "", 3),
	), nil)

	c.On("CharacterProfile", mock.Anything, "terokkar", "Zed").Return(profileFixture(1, "Zed", 610, 0), nil)
	c.On("CharacterProfile", mock.Anything, "terokkar", "Amy").Return(profileFixture(2, "Amy", 639, 1700000000000), nil)
	c.On("CharacterProfile", mock.Anything, "terokkar", "Bob").Return(profileFixture(3, "Bob", 600, 1700000000000), nil)
	c.On("CharacterProfile", mock.Anything, "terokkar", "Lost").Return(nil, blizzard.ErrNotFound)

	c.On("CharacterAchievements", mock.Anything, "terokkar", "Zed").Return(achievementsFixture(t, 1, 2000, 100, 101, 102, 103), nil)
	c.On("CharacterAchievements", mock.Anything, "terokkar", "Amy").Return(achievementsFixture(t, 1, 1000, 100, 101, 102, 103, 104), nil)
	c.On("CharacterAchievements", mock.Anything, "terokkar", "Bob").Return(achievementsFixture(t, 7, 500, 100, 101, 102), nil)
	c.On("CharacterAchievements", mock.Anything, "terokkar", "Lost").Return(nil, blizzard.ErrNotFound)

	c.On("CharacterPets", mock.Anything, "terokkar", mock.Anything).Return(collectionFixture(t, "pets", 3), nil)
	c.On("CharacterMounts", mock.Anything, "terokkar", mock.Anything).Return(collectionFixture(t, "mounts", 2), nil)
	return c
}

func newTestService(t *testing.T, client blizzard.Client, opts Options) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewCSV(t.TempDir())
	require.NoError(t, err)
	return NewService(client, st, testEngine(t), opts), st
}

func TestUpdate_FullPipeline(t *testing.T) {
	client := guildFixture(t)
	svc, st := newTestService(t, client, Options{Concurrency: 2})
	ctx := context.Background()

	res, err := svc.Update(ctx, testKey)
	require.NoError(t, err)

	assert.Equal(t, []model.AltRecord{
		{ID: 2, Name: "Amy", Alt: false, Main: "Amy"},
		{ID: 1, Name: "Zed", Alt: true, Main: "Amy"},
		{ID: 3, Name: "Bob", Alt: false, Main: "Bob"},
		{ID: 4, Name: "Lost", Alt: false, Main: "Lost"},
	}, res.Alts)
	assert.Equal(t, report.Summary{
		Members:    5,
		Characters: 4,
		Alts:       1,
		Mains:      3,
		Failed:     2,
		Duration:   res.Summary.Duration,
	}, res.Summary)

	require.Len(t, res.Dashboard, 3)
	zed := res.Dashboard[0]
	assert.Equal(t, "Zed", zed.Name)
	assert.Equal(t, "Warrior", zed.Class)
	assert.Equal(t, "Orc", zed.Race)
	assert.Equal(t, "Alt", zed.Rank)
	assert.True(t, zed.Alt)
	assert.Equal(t, "Amy", zed.Main)
	assert.Equal(t, 610, zed.ItemLevel)
	assert.Equal(t, NotAvailable, zed.LastLogin)
	assert.Equal(t, 5, zed.AQ)
	assert.Equal(t, 50, zed.AP)
	assert.Equal(t, "https://raider.io/characters/eu/terokkar/zed", zed.RaiderIO)
	assert.Equal(t, "Amy", res.Dashboard[1].Name)
	assert.Equal(t, "Guild Master", res.Dashboard[1].Rank)
	assert.Equal(t, "2023-11-14 22:13:20", res.Dashboard[1].LastLogin)

	var stored []model.DashboardRow
	_, err = st.LoadTable(ctx, testKey, store.TableDashboard, &stored)
	require.NoError(t, err)
	assert.Equal(t, res.Dashboard, stored)

	var classes []model.Ref
	_, err = st.LoadTable(ctx, model.GuildKey{}, store.TableClasses, &classes)
	require.NoError(t, err)
	assert.Equal(t, []model.Ref{{ID: 1, Name: "Warrior"}}, classes)

	var ranks []model.Ref
	_, err = st.LoadTable(ctx, testKey, store.TableRanks, &ranks)
	require.NoError(t, err)
	assert.Equal(t, DefaultRanks, ranks)

	raw, err := st.LoadPayload(ctx, store.PayloadRef{Region: "eu", Realm: "terokkar", Name: "Amy", Kind: model.PayloadAchievements})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_points":60`)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Stats)
	assert.Equal(t, 1, run.Stats.Alts)
	assert.Equal(t, 3, run.Stats.Mains)

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "CharacterAchievements", mock.Anything, "", "Nowhere")
}

func TestUpdate_ReferenceTablesFetchedOnce(t *testing.T) {
	client := guildFixture(t)
	svc, _ := newTestService(t, client, Options{})
	ctx := context.Background()

	_, err := svc.Update(ctx, testKey)
	require.NoError(t, err)
	_, err = svc.Update(ctx, testKey)
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "PlayableClasses", 1)
	client.AssertNumberOfCalls(t, "PlayableRaces", 1)
	client.AssertNumberOfCalls(t, "GuildRoster", 2)
}

func TestUpdate_RankOverrides(t *testing.T) {
	client := guildFixture(t)
	svc, _ := newTestService(t, client, Options{
		RankOverrides: []model.Ref{{ID: 0, Name: "Raid Leader"}, {ID: 42, Name: "Ghost"}},
	})

	res, err := svc.Update(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "Raid Leader", res.Dashboard[1].Rank)
}

func TestUpdate_XLSXExport(t *testing.T) {
	client := guildFixture(t)
	path := filepath.Join(t.TempDir(), "dashboard.xlsx")
	svc, _ := newTestService(t, client, Options{XLSXPath: path})

	_, err := svc.Update(context.Background(), testKey)
	require.NoError(t, err)

	rows, err := report.ReadXLSX(path, report.DashboardSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, report.DashboardHeader, rows[0])
	assert.Equal(t, "Zed", rows[1][0])
	assert.Equal(t, "Amy", rows[1][9])
}

func TestUpdate_EmptyRosterFails(t *testing.T) {
	client := &mockBlizzardClient{}
	client.On("PlayableClasses", mock.Anything).Return([]blizzard.Ref{{ID: 1, Name: "Warrior"}}, nil)
	client.On("PlayableRaces", mock.Anything).Return([]blizzard.Ref{{ID: 2, Name: "Orc"}}, nil)
	client.On("GuildRoster", mock.Anything, "terokkar", "darq-side-of-the-moon").Return(rosterFixture(t), nil)
	svc, st := newTestService(t, client, Options{})
	ctx := context.Background()

	_, err := svc.Update(ctx, testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no members")

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "no members")
}

func TestUpdate_ReferenceFetchFailure(t *testing.T) {
	client := &mockBlizzardClient{}
	client.On("PlayableClasses", mock.Anything).Return(nil, assert.AnError)
	svc, _ := newTestService(t, client, Options{})

	_, err := svc.Update(context.Background(), testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch classes")
	client.AssertNotCalled(t, "GuildRoster", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_CancelledContext(t *testing.T) {
	client := guildFixture(t)
	svc, _ := newTestService(t, client, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Update(ctx, testKey)
	require.Error(t, err)
}

func TestRecompute_FromCache(t *testing.T) {
	client := guildFixture(t)
	svc, st := newTestService(t, client, Options{})
	ctx := context.Background()

	_, err := svc.Update(ctx, testKey)
	require.NoError(t, err)

	strict := testAltsConfig()
	strict.Threshold = 0.9
	res, err := svc.Recompute(ctx, testKey, strict, true)
	require.NoError(t, err)

	assert.Equal(t, []model.AltRecord{
		{ID: 2, Name: "Amy", Alt: false, Main: "Amy"},
		{ID: 3, Name: "Bob", Alt: false, Main: "Bob"},
		{ID: 4, Name: "Lost", Alt: false, Main: "Lost"},
		{ID: 1, Name: "Zed", Alt: false, Main: "Zed"},
	}, res.Alts)
	assert.Equal(t, 0, res.Summary.Alts)
	assert.Equal(t, 1, res.Summary.Failed)

	var stored []model.DashboardRow
	_, err = st.LoadTable(ctx, testKey, store.TableDashboard, &stored)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.False(t, stored[0].Alt)
	assert.Equal(t, "Zed", stored[0].Main)

	// Only the update talked to Battle.net.
	client.AssertNumberOfCalls(t, "GuildRoster", 1)
}

func TestRecompute_DryRunLeavesTables(t *testing.T) {
	client := guildFixture(t)
	svc, st := newTestService(t, client, Options{})
	ctx := context.Background()

	_, err := svc.Update(ctx, testKey)
	require.NoError(t, err)

	strict := testAltsConfig()
	strict.Threshold = 0.9
	res, err := svc.Recompute(ctx, testKey, strict, false)
	require.NoError(t, err)
	assert.Nil(t, res.Dashboard)

	var stored []model.AltRecord
	_, err = st.LoadTable(ctx, testKey, store.TableAlts, &stored)
	require.NoError(t, err)
	assert.Equal(t, 1, alts.Summarize(stored).Alts)
}

func TestRecompute_NoCache(t *testing.T) {
	svc, _ := newTestService(t, &mockBlizzardClient{}, Options{})

	_, err := svc.Recompute(context.Background(), testKey, testAltsConfig(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run update first")
}

func TestRecompute_InvalidConfig(t *testing.T) {
	svc, _ := newTestService(t, &mockBlizzardClient{}, Options{})

	cfg := testAltsConfig()
	cfg.Threshold = 2
	_, err := svc.Recompute(context.Background(), testKey, cfg, false)
	require.Error(t, err)
}

func TestFanOut_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	err := fanOut(context.Background(), 20, 3, func(_ context.Context, _ int) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.GreaterOrEqual(t, peak.Load(), int64(1))
}
