package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groster/groster/internal/model"
)

func dashboardFixture() []model.DashboardRow {
	return []model.DashboardRow{
		{Name: "Amy", Realm: "terokkar", Class: "Mage", Main: "Amy", ItemLevel: 639, LastLogin: "2023-11-14 22:13:20"},
		{Name: "Zed", Realm: "terokkar", Class: "Rogue", Alt: true, Main: "Amy", ItemLevel: 610, LastLogin: "N/A"},
		{Name: "Bob", Realm: "silvermoon", Class: "Warrior", Main: "Bob", ItemLevel: 600},
		{Name: "Kim", Realm: "terokkar", Class: "Druid", Alt: true, Main: "Amy", ItemLevel: 580},
		{Name: "Orphan", Realm: "terokkar", Class: "", Alt: true, Main: "Gone", ItemLevel: 500},
		{Name: "Éowyn", Realm: "terokkar", Class: "Paladin", Main: "Éowyn", ItemLevel: 620},
	}
}

func TestLookup_ResolvesMainAndAlts(t *testing.T) {
	rows := dashboardFixture()

	for _, name := range []string{"zed", "AMY", " Kim "} {
		info, ok := Lookup(rows, name)
		require.True(t, ok, name)
		assert.Equal(t, "Amy", info.Main.Name, name)
		require.Len(t, info.Alts, 2, name)
		assert.Equal(t, "Zed", info.Alts[0].Name)
		assert.Equal(t, "Kim", info.Alts[1].Name)
	}
}

func TestLookup_MainWithoutAlts(t *testing.T) {
	info, ok := Lookup(dashboardFixture(), "bob")
	require.True(t, ok)
	assert.Equal(t, "Bob", info.Main.Name)
	assert.Empty(t, info.Alts)
}

func TestLookup_UnicodeFold(t *testing.T) {
	info, ok := Lookup(dashboardFixture(), "éOWYN")
	require.True(t, ok)
	assert.Equal(t, "Éowyn", info.Main.Name)
}

func TestLookup_MissingMainFallsBackToMatch(t *testing.T) {
	info, ok := Lookup(dashboardFixture(), "orphan")
	require.True(t, ok)
	assert.Equal(t, "Orphan", info.Main.Name)
}

func TestLookup_NotFound(t *testing.T) {
	_, ok := Lookup(dashboardFixture(), "Nobody")
	assert.False(t, ok)

	_, ok = Lookup(nil, "Amy")
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	rows := dashboardFixture()

	assert.Equal(t, []string{"Amy"}, Suggest(rows, "Amyy"))
	assert.Equal(t, []string{"Kim", "Bob"}, Suggest(rows, "Bim"))
	assert.Empty(t, Suggest(rows, "Completely different"))
	assert.Empty(t, Suggest(nil, "Amy"))
}

func TestSuggest_CapsResults(t *testing.T) {
	rows := []model.DashboardRow{{Name: "Aa"}, {Name: "Ab"}, {Name: "Ac"}, {Name: "Ad"}, {Name: "AA"}}
	got := Suggest(rows, "A")
	assert.Equal(t, []string{"Aa", "Ab", "Ac"}, got)
}

func TestClassEmoji(t *testing.T) {
	assert.Equal(t, "🧙", ClassEmoji("Mage"))
	assert.Equal(t, "💀", ClassEmoji("Death Knight"))
	assert.Equal(t, defaultEmoji, ClassEmoji("Tinker"))
	assert.Equal(t, defaultEmoji, ClassEmoji(""))
}

func TestFormatCharacter(t *testing.T) {
	rows := dashboardFixture()
	info := &CharacterInfo{Main: rows[0], Alts: []model.DashboardRow{rows[1]}}

	want := "**Main:**\n" +
		"🧙 **Amy** — Mage\n" +
		"Realm: terokkar (EU)\n" +
		"iLvl: 639\n" +
		"Last Login: 2023-11-14 22:13:20\n" +
		"\n**Alts:**\n" +
		"🗡️ **Zed** — Rogue\n" +
		"Realm: terokkar (EU)\n" +
		"iLvl: 610\n" +
		"Last Login: N/A"
	assert.Equal(t, want, FormatCharacter(info, "eu"))
}

func TestFormatCharacter_UnknownClass(t *testing.T) {
	info := &CharacterInfo{Main: model.DashboardRow{Name: "Orphan", Realm: "terokkar"}}
	out := FormatCharacter(info, "us")
	assert.Contains(t, out, "⚔️ **Orphan** — Unknown")
	assert.Contains(t, out, "(US)")
	assert.NotContains(t, out, "Alts")
}

func TestFormatNotFound(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	t.Run("fresh dashboard", func(t *testing.T) {
		out := FormatNotFound(NotFound{
			Name:       "Nobody",
			UserID:     "42",
			ModifiedAt: time.Date(2026, 1, 2, 6, 0, 0, 0, time.UTC),
		}, now, time.UTC)
		assert.Contains(t, out, "<@42>, character **Nobody** not found in guild roster.")
		assert.Contains(t, out, "Last date of guild roster update was 2026-01-02 06:00:00.")
		assert.NotContains(t, out, "outdated")
		assert.NotContains(t, out, "Did you mean")
	})

	t.Run("stale dashboard", func(t *testing.T) {
		out := FormatNotFound(NotFound{
			Name:       "Nobody",
			ModifiedAt: time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC),
		}, now, time.FixedZone("CET", 3600))
		assert.Contains(t, out, "2026-01-01 07:00:00")
		assert.Contains(t, out, "The guild roster is outdated.")
		assert.NotContains(t, out, "<@")
	})

	t.Run("no dashboard", func(t *testing.T) {
		out := FormatNotFound(NotFound{Name: "Nobody", Suggestions: []string{"Noboddy", "Nobo"}}, now, nil)
		assert.NotContains(t, out, "Last date")
		assert.Contains(t, out, "Did you mean **Noboddy**, **Nobo**?")
	})
}
