package model

// Ref is an id/name pair used for playable classes, races and guild ranks.
type Ref struct {
	ID   int    `json:"id" csv:"id" yaml:"id"`
	Name string `json:"name" csv:"name" yaml:"name"`
}

// RefMap converts a slice of refs to an id-keyed map.
func RefMap(refs []Ref) map[int]string {
	m := make(map[int]string, len(refs))
	for _, r := range refs {
		m[r.ID] = r.Name
	}
	return m
}

// RosterRow is one processed roster member with profile details.
type RosterRow struct {
	ID        int64  `json:"id" csv:"id"`
	Name      string `json:"name" csv:"name"`
	Realm     string `json:"realm" csv:"realm"`
	Level     int    `json:"level" csv:"level"`
	ClassID   int    `json:"class_id" csv:"class_id"`
	RaceID    int    `json:"race_id" csv:"race_id"`
	Rank      int    `json:"rank" csv:"rank"`
	ItemLevel int    `json:"ilvl" csv:"ilvl"`
	LastLogin string `json:"last_login" csv:"last_login"`
}

// ProfileLinks holds external profile URLs for a character.
type ProfileLinks struct {
	ID           int64  `json:"id" csv:"id"`
	Name         string `json:"name" csv:"name"`
	RaiderIO     string `json:"rio_link" csv:"rio_link"`
	Armory       string `json:"armory_link" csv:"armory_link"`
	WarcraftLogs string `json:"warcraft_logs_link" csv:"warcraft_logs_link"`
}

// AltRecord declares a character's alt status and the name of its main.
type AltRecord struct {
	ID   int64  `json:"id" csv:"id"`
	Name string `json:"name" csv:"name"`
	Alt  bool   `json:"alt" csv:"alt"`
	Main string `json:"main" csv:"main"`
}

// AchievementSummary is the achievement count and points of a character.
type AchievementSummary struct {
	ID            int64  `json:"id" csv:"id"`
	Name          string `json:"name" csv:"name"`
	TotalQuantity int    `json:"total_quantity" csv:"total_quantity"`
	TotalPoints   int    `json:"total_points" csv:"total_points"`
}

// DashboardRow is one line of the consolidated guild dashboard.
type DashboardRow struct {
	Name      string `json:"name" csv:"Name"`
	Realm     string `json:"realm" csv:"Realm"`
	Level     int    `json:"level" csv:"Level"`
	Class     string `json:"class" csv:"Class"`
	Race      string `json:"race" csv:"Race"`
	Rank      string `json:"rank" csv:"Rank"`
	AQ        int    `json:"aq" csv:"AQ"`
	AP        int    `json:"ap" csv:"AP"`
	Alt       bool   `json:"alt" csv:"Alt?"`
	Main      string `json:"main" csv:"Main"`
	ItemLevel int    `json:"ilvl" csv:"iLvl"`
	LastLogin string `json:"last_login" csv:"Last Login"`
	RaiderIO  string `json:"rio_link" csv:"Raider.io"`
	Armory    string `json:"armory_link" csv:"Armory"`
	Logs      string `json:"logs_link" csv:"Logs"`
}

// PayloadKind names a cached raw character payload.
type PayloadKind string

const (
	PayloadProfile      PayloadKind = "profile"
	PayloadAchievements PayloadKind = "achievements"
	PayloadPets         PayloadKind = "pets"
	PayloadMounts       PayloadKind = "mounts"
	// PayloadRoster is the guild roster, stored under the guild slug.
	PayloadRoster PayloadKind = "roster"
)
