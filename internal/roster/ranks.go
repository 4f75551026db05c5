package roster

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/groster/groster/internal/model"
)

// DefaultRanks is the rank table used for a guild until it is overridden.
var DefaultRanks = []model.Ref{
	{ID: 0, Name: "Guild Master"},
	{ID: 1, Name: "Officer"},
	{ID: 2, Name: "Veteran"},
	{ID: 3, Name: "Member"},
	{ID: 4, Name: "Initiate"},
	{ID: 5, Name: "Social"},
	{ID: 6, Name: "Alt"},
	{ID: 7, Name: "Trial"},
	{ID: 8, Name: "Inactive"},
	{ID: 9, Name: "Recruit"},
}

// RankFile is the YAML layout of a rank override file:
//
//	ranks:
//	  - id: 0
//	    name: Raid Leader
type RankFile struct {
	Ranks []model.Ref `yaml:"ranks"`
}

// LoadRankOverrides reads rank name overrides from a YAML file.
func LoadRankOverrides(path string) ([]model.Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: read rank file %s", path)
	}
	var f RankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "roster: parse rank file %s", path)
	}
	return f.Ranks, nil
}

// ApplyRankOverrides renames ranks in base. Overrides for rank ids that are
// not in base are logged and ignored. base is not modified.
func ApplyRankOverrides(base, overrides []model.Ref) []model.Ref {
	out := slices.Clone(base)
	for _, o := range overrides {
		i := slices.IndexFunc(out, func(r model.Ref) bool { return r.ID == o.ID })
		if i < 0 {
			zap.L().Warn("roster: ignoring override for unknown rank",
				zap.Int("rank", o.ID),
				zap.String("name", o.Name),
			)
			continue
		}
		out[i].Name = o.Name
	}
	return out
}
