package blizzard

import (
	"encoding/json"
)

// Ref is a named game-data reference such as a playable class or race.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RealmRef identifies a realm.
type RealmRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// GuildRoster is the guild roster payload.
type GuildRoster struct {
	Members []GuildMember   `json:"members"`
	Raw     json.RawMessage `json:"-"`
}

// GuildMember is one roster entry.
type GuildMember struct {
	Character RosterCharacter `json:"character"`
	Rank      int             `json:"rank"`
}

// RosterCharacter is the character summary embedded in a roster entry.
type RosterCharacter struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Level         int      `json:"level"`
	Realm         RealmRef `json:"realm"`
	PlayableClass Ref      `json:"playable_class"`
	PlayableRace  Ref      `json:"playable_race"`
}

// CharacterProfile is the character profile summary payload.
type CharacterProfile struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Level              int             `json:"level"`
	Realm              RealmRef        `json:"realm"`
	CharacterClass     Ref             `json:"character_class"`
	Race               Ref             `json:"race"`
	EquippedItemLevel  int             `json:"equipped_item_level"`
	AverageItemLevel   int             `json:"average_item_level"`
	LastLoginTimestamp int64           `json:"last_login_timestamp"`
	Raw                json.RawMessage `json:"-"`
}

// Achievements is the character achievements payload.
type Achievements struct {
	TotalQuantity int                `json:"total_quantity"`
	TotalPoints   int                `json:"total_points"`
	Achievements  []AchievementEntry `json:"achievements"`
	Raw           json.RawMessage    `json:"-"`
}

// AchievementEntry is one achievement record. CompletedTimestamp is epoch
// millis and nil for achievements still in progress.
type AchievementEntry struct {
	ID                 int    `json:"id"`
	CompletedTimestamp *int64 `json:"completed_timestamp"`
}

// Collection is a pets or mounts collection payload.
type Collection struct {
	Items []json.RawMessage
	Raw   json.RawMessage
}

// UnmarshalJSON accepts the "pets", "mounts" and "items" list keys.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var body struct {
		Pets   []json.RawMessage `json:"pets"`
		Mounts []json.RawMessage `json:"mounts"`
		Items  []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	switch {
	case body.Pets != nil:
		c.Items = body.Pets
	case body.Mounts != nil:
		c.Items = body.Mounts
	default:
		c.Items = body.Items
	}
	return nil
}

// Len returns the number of collected items. A nil collection has none.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

type classIndex struct {
	Classes []Ref `json:"classes"`
}

type raceIndex struct {
	Races []Ref `json:"races"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
