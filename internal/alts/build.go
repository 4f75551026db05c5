package alts

import (
	"cmp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/groster/groster/internal/model"
)

// BuildRecords flattens groups and their elected mains into one record per
// profile, sorted by (main, name). mains[i] is the main index of groups[i].
// A profile missing from every group is its own main.
func BuildRecords(profiles []Profile, groups []Group, mains []int) []model.AltRecord {
	mainOf := make([]int, len(profiles))
	for i := range mainOf {
		mainOf[i] = -1
	}
	for gi, g := range groups {
		for _, idx := range g {
			mainOf[idx] = mains[gi]
		}
	}

	records := make([]model.AltRecord, 0, len(profiles))
	for i, p := range profiles {
		m := mainOf[i]
		if m < 0 {
			m = i
		}
		records = append(records, model.AltRecord{
			ID:   p.ID,
			Name: p.Name,
			Alt:  m != i,
			Main: profiles[m].Name,
		})
	}

	slices.SortStableFunc(records, func(a, b model.AltRecord) int {
		return cmp.Or(strings.Compare(a.Main, b.Main), strings.Compare(a.Name, b.Name))
	})
	return records
}

// Identify runs clustering, main election and record building over the
// complete profile list of one guild. An empty list yields an empty result.
func (e *Engine) Identify(profiles []Profile) []model.AltRecord {
	if len(profiles) == 0 {
		return []model.AltRecord{}
	}

	groups := e.Cluster(profiles)
	mains := make([]int, len(groups))
	for i, g := range groups {
		mains[i] = ElectMain(profiles, g, e.cfg.OnboardingID)
	}
	records := BuildRecords(profiles, groups, mains)

	sum := Summarize(records)
	zap.L().Info("alts: identification complete",
		zap.Int("characters", sum.Characters),
		zap.Int("groups", len(groups)),
		zap.Int("alts", sum.Alts),
		zap.Int("mains", sum.Mains),
		zap.Float64("threshold", e.cfg.Threshold),
	)
	return records
}

// Summary counts the outcome of an identification pass.
type Summary struct {
	Characters int `json:"characters"`
	Alts       int `json:"alts"`
	Mains      int `json:"mains"`
}

// Summarize counts alts and distinct mains in records.
func Summarize(records []model.AltRecord) Summary {
	mains := make(map[string]struct{})
	s := Summary{Characters: len(records)}
	for _, r := range records {
		if r.Alt {
			s.Alts++
		}
		mains[r.Main] = struct{}{}
	}
	s.Mains = len(mains)
	return s
}
