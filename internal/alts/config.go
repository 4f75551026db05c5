// Package alts groups guild characters that belong to the same player and
// elects a main character for every group.
package alts

import (
	"slices"

	"github.com/rotisserie/eris"
)

const (
	// DefaultOnboardingID is the "Level 10" achievement. Its completion time
	// orders character creation and is used to elect the main.
	DefaultOnboardingID = 6

	// DefaultThreshold is the minimum Jaccard similarity to merge two characters.
	DefaultThreshold = 0.8

	// MinReliableFingerprint is the smallest fingerprint that may be compared.
	MinReliableFingerprint = 3
)

// DefaultFingerprintIDs are account-wide achievements whose completion
// timestamps are shared by every character of a Battle.net account.
var DefaultFingerprintIDs = []int{
	2143,  // Leading the Cavalry
	2536,  // Mountain o' Mounts
	7860,  // We're Gonna Need a Bigger Bag
	8933,  // Going to Need More Leashes
	9598,  // Draenor Pathfinder
	10994, // A Glorious Campaign
	11176, // Remember the Fallen
	12931, // Battle for Azeroth Pathfinder, Part One
	13250, // Battle for Azeroth Pathfinder, Part Two
	14305, // Sanctum of Domination
	15336, // Sojourner of Zereth Mortis
	15794, // Dragon Isles Pathfinder
	16492, // Legacy of the Dragonflight
	17739, // Embers of Neltharion
	19307, // Dornogal Drifter
	20595, // Delve Loremaster
	40870, // Khaz Algar Pathfinder
	41133, // Isle Remember You
}

// Config tunes alt identification.
type Config struct {
	// FingerprintIDs are the achievements compared between characters.
	FingerprintIDs []int `yaml:"fingerprint_ids" mapstructure:"fingerprint_ids"`
	// OnboardingID orders character creation; never part of a fingerprint.
	OnboardingID int `yaml:"onboarding_id" mapstructure:"onboarding_id"`
	// Threshold is inclusive: similarity >= Threshold merges.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// MinFingerprint is raised to MinReliableFingerprint when lower.
	MinFingerprint int `yaml:"min_fingerprint" mapstructure:"min_fingerprint"`
	// CollectionPrefilter only compares characters with equal pet and
	// mount counts.
	CollectionPrefilter bool `yaml:"collection_prefilter" mapstructure:"collection_prefilter"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		FingerprintIDs: slices.Clone(DefaultFingerprintIDs),
		OnboardingID:   DefaultOnboardingID,
		Threshold:      DefaultThreshold,
		MinFingerprint: MinReliableFingerprint,
	}
}

// Validate checks the configuration for values that make grouping meaningless.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return eris.Errorf("alts: threshold %.3f outside [0,1]", c.Threshold)
	}
	if len(c.FingerprintIDs) == 0 {
		return eris.New("alts: no fingerprint achievement ids")
	}
	if slices.Contains(c.FingerprintIDs, c.OnboardingID) {
		return eris.Errorf("alts: onboarding achievement %d is also a fingerprint id", c.OnboardingID)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if len(c.FingerprintIDs) == 0 {
		c.FingerprintIDs = slices.Clone(DefaultFingerprintIDs)
	}
	if c.OnboardingID == 0 {
		c.OnboardingID = DefaultOnboardingID
	}
	if c.MinFingerprint < MinReliableFingerprint {
		c.MinFingerprint = MinReliableFingerprint
	}
	return c
}

func (c Config) fingerprintSet() map[int]struct{} {
	set := make(map[int]struct{}, len(c.FingerprintIDs))
	for _, id := range c.FingerprintIDs {
		set[id] = struct{}{}
	}
	return set
}
