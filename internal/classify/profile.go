package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SectorProfile defines one buyer sector: the keywords that signal a
// relevant notice, the phrases that always disqualify one, and the
// signature terms used to veto matches that really belong to this
// sector when another sector is under test.
type SectorProfile struct {
	Label          string   `yaml:"label"`
	Keywords       []string `yaml:"keywords"`
	Exclusions     []string `yaml:"exclusions"`
	SignatureTerms []string `yaml:"signature_terms"`
}

// ProfileSet holds every configured sector profile, keyed by sector id.
type ProfileSet struct {
	Sectors map[string]SectorProfile `yaml:"sectors"`
}

// LoadProfiles reads sector profiles from a YAML file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read profiles %s", path)
	}

	var set ProfileSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, eris.Wrap(err, "classify: parse profiles")
	}
	if len(set.Sectors) == 0 {
		return nil, eris.Errorf("classify: no sectors defined in %s", path)
	}
	return &set, nil
}

// Get returns the profile for a sector id.
func (s *ProfileSet) Get(sector string) (SectorProfile, bool) {
	p, ok := s.Sectors[sector]
	return p, ok
}

// ForeignSignatures returns the normalized signature terms of every
// sector except the one named. These are the terms that, found near a
// keyword match, mark the match as belonging to another sector.
func (s *ProfileSet) ForeignSignatures(sector string) []string {
	var out []string
	for id, p := range s.Sectors {
		if id == sector {
			continue
		}
		for _, term := range p.SignatureTerms {
			out = append(out, Normalize(term))
		}
	}
	return out
}
