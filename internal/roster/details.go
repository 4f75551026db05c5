package roster

import (
	"strings"
	"time"

	"github.com/groster/groster/internal/model"
	"github.com/groster/groster/pkg/blizzard"
)

// NotAvailable is shown for a missing last login.
const NotAvailable = "N/A"

const timestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders an epoch-millis timestamp in loc. Zero renders as
// NotAvailable.
func FormatTimestamp(ms int64, loc *time.Location) string {
	if ms == 0 {
		return NotAvailable
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format(timestampLayout)
}

// validMember reports whether a roster entry names a character on a realm.
func validMember(m blizzard.GuildMember) bool {
	return m.Character.Name != "" && m.Character.Realm.Slug != ""
}

// BuildDetails joins roster members with their fetched profiles. profiles is
// index-aligned with members; members without a profile are left out.
func BuildDetails(members []blizzard.GuildMember, profiles []*blizzard.CharacterProfile, loc *time.Location) []model.RosterRow {
	rows := make([]model.RosterRow, 0, len(members))
	for i, m := range members {
		if i >= len(profiles) || profiles[i] == nil {
			continue
		}
		p := profiles[i]
		c := m.Character
		rows = append(rows, model.RosterRow{
			ID:        c.ID,
			Name:      c.Name,
			Realm:     c.Realm.Slug,
			Level:     c.Level,
			ClassID:   c.PlayableClass.ID,
			RaceID:    c.PlayableRace.ID,
			Rank:      m.Rank,
			ItemLevel: p.EquippedItemLevel,
			LastLogin: FormatTimestamp(p.LastLoginTimestamp, loc),
		})
	}
	return rows
}

// BuildLinks returns raider.io, armory and Warcraft Logs links for every
// member with a name and realm.
func BuildLinks(region string, members []blizzard.GuildMember) []model.ProfileLinks {
	links := make([]model.ProfileLinks, 0, len(members))
	for _, m := range members {
		if !validMember(m) {
			continue
		}
		c := m.Character
		path := region + "/" + c.Realm.Slug + "/" + strings.ToLower(c.Name)
		links = append(links, model.ProfileLinks{
			ID:           c.ID,
			Name:         c.Name,
			RaiderIO:     "https://raider.io/characters/" + path,
			Armory:       "https://worldofwarcraft.blizzard.com/en-gb/character/" + path,
			WarcraftLogs: "https://www.warcraftlogs.com/character/" + path,
		})
	}
	return links
}
