package bot

import (
	"cmp"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/groster/groster/internal/model"
)

// MaxSuggestionDistance is the largest edit distance offered as a
// "did you mean" suggestion.
const MaxSuggestionDistance = 2

const maxSuggestions = 3

// CharacterInfo is a resolved main character with its alts.
type CharacterInfo struct {
	Main model.DashboardRow
	Alts []model.DashboardRow
}

// Lookup finds name in the dashboard and resolves its main and all alts of
// that main. If the main itself is not in the dashboard the matched row
// stands in for it.
func Lookup(rows []model.DashboardRow, name string) (*CharacterInfo, bool) {
	i := slices.IndexFunc(rows, func(r model.DashboardRow) bool { return model.SameName(r.Name, name) })
	if i < 0 {
		return nil, false
	}
	hit := rows[i]

	mainName := hit.Name
	if hit.Alt {
		mainName = hit.Main
	}

	info := &CharacterInfo{Main: hit}
	if j := slices.IndexFunc(rows, func(r model.DashboardRow) bool { return model.SameName(r.Name, mainName) }); j >= 0 {
		info.Main = rows[j]
	}
	for _, r := range rows {
		if r.Alt && model.SameName(r.Main, mainName) {
			info.Alts = append(info.Alts, r)
		}
	}
	return info, true
}

// Suggest returns up to three dashboard names within MaxSuggestionDistance
// edits of name, closest first.
func Suggest(rows []model.DashboardRow, name string) []string {
	type candidate struct {
		name string
		dist int
	}
	target := model.FoldName(name)
	seen := make(map[string]bool, len(rows))
	var cands []candidate
	for _, r := range rows {
		folded := model.FoldName(r.Name)
		if seen[folded] {
			continue
		}
		seen[folded] = true
		if d := levenshtein.ComputeDistance(target, folded); d <= MaxSuggestionDistance {
			cands = append(cands, candidate{r.Name, d})
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		return cmp.Or(cmp.Compare(a.dist, b.dist), cmp.Compare(a.name, b.name))
	})

	out := make([]string, 0, min(len(cands), maxSuggestions))
	for _, c := range cands[:min(len(cands), maxSuggestions)] {
		out = append(out, c.name)
	}
	return out
}
