package roster

import (
	"github.com/groster/groster/internal/model"
)

// DashboardInput holds the tables joined into the dashboard.
type DashboardInput struct {
	Roster       []model.RosterRow
	Links        []model.ProfileLinks
	Alts         []model.AltRecord
	Achievements []model.AchievementSummary
	Classes      []model.Ref
	Races        []model.Ref
	Ranks        []model.Ref
}

type charKey struct {
	id   int64
	name string
}

// BuildDashboard joins roster details with links and alt records (inner
// join on id and name) and with achievement summaries (left join), then
// maps class, race and rank ids to names. Rows keep roster order.
func BuildDashboard(in DashboardInput) []model.DashboardRow {
	links := make(map[charKey]model.ProfileLinks, len(in.Links))
	for _, l := range in.Links {
		links[charKey{l.ID, l.Name}] = l
	}
	altRecs := make(map[charKey]model.AltRecord, len(in.Alts))
	for _, a := range in.Alts {
		altRecs[charKey{a.ID, a.Name}] = a
	}
	achievements := make(map[charKey]model.AchievementSummary, len(in.Achievements))
	for _, a := range in.Achievements {
		achievements[charKey{a.ID, a.Name}] = a
	}
	classes := model.RefMap(in.Classes)
	races := model.RefMap(in.Races)
	ranks := model.RefMap(in.Ranks)

	rows := make([]model.DashboardRow, 0, len(in.Roster))
	for _, r := range in.Roster {
		k := charKey{r.ID, r.Name}
		link, ok := links[k]
		if !ok {
			continue
		}
		alt, ok := altRecs[k]
		if !ok {
			continue
		}
		ach := achievements[k]
		rows = append(rows, model.DashboardRow{
			Name:      r.Name,
			Realm:     r.Realm,
			Level:     r.Level,
			Class:     classes[r.ClassID],
			Race:      races[r.RaceID],
			Rank:      ranks[r.Rank],
			AQ:        ach.TotalQuantity,
			AP:        ach.TotalPoints,
			Alt:       alt.Alt,
			Main:      alt.Main,
			ItemLevel: r.ItemLevel,
			LastLogin: r.LastLogin,
			RaiderIO:  link.RaiderIO,
			Armory:    link.Armory,
			Logs:      link.WarcraftLogs,
		})
	}
	return rows
}
