package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// GuildKey identifies the data set of one guild.
type GuildKey struct {
	Region string `json:"region"`
	Realm  string `json:"realm"`
	Guild  string `json:"guild"`
}

// String renders the key as guild@realm.region for log output.
func (k GuildKey) String() string {
	return k.Guild + "@" + k.Realm + "." + k.Region
}

// Prefix returns the hyphen-joined file prefix region-realm-guild.
func (k GuildKey) Prefix() string {
	return strings.Join([]string{k.Region, k.Realm, k.Guild}, "-")
}

// Valid reports whether all three key parts are set.
func (k GuildKey) Valid() bool {
	return k.Region != "" && k.Realm != "" && k.Guild != ""
}

// CharacterIdentity is the immutable identity of a roster character.
type CharacterIdentity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Realm string `json:"realm"`
}

// FoldName normalizes a character name for case-insensitive lookups.
// Character names carry accented letters, so a Unicode case fold is used
// instead of strings.ToLower.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName reports whether two character names match case-insensitively.
func SameName(a, b string) bool {
	return FoldName(a) == FoldName(b)
}
