package normalize

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules holds the heuristic token lists used when the column mapping is
// incomplete. Token matching is case-insensitive substring matching against
// column names.
type Rules struct {
	IdentifierTokens []string `yaml:"identifier_tokens"`
	FullNameTokens   []string `yaml:"full_name_tokens"`
	Honorifics       []string `yaml:"honorifics"`
	Sentinels        []string `yaml:"sentinels"`
}

// DefaultRules returns the built-in heuristics.
func DefaultRules() Rules {
	return Rules{
		IdentifierTokens: []string{"registration", "reg_no", "license", "npi"},
		FullNameTokens:   []string{"full_name", "provider_name"},
		Honorifics:       []string{"Dr.", "Dr", "Mr.", "Mrs.", "Ms.", "Prof."},
		Sentinels:        []string{"nan", "NaN", "None", "null", "NULL"},
	}
}

// LoadRules reads a YAML rules file. Lists present in the file replace the
// corresponding default list; absent lists keep the defaults. An empty path
// returns DefaultRules.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "normalize: read rules %s", path)
	}

	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return rules, eris.Wrapf(err, "normalize: parse rules %s", path)
	}

	if len(file.IdentifierTokens) > 0 {
		rules.IdentifierTokens = file.IdentifierTokens
	}
	if len(file.FullNameTokens) > 0 {
		rules.FullNameTokens = file.FullNameTokens
	}
	if len(file.Honorifics) > 0 {
		rules.Honorifics = file.Honorifics
	}
	if len(file.Sentinels) > 0 {
		rules.Sentinels = file.Sentinels
	}
	return rules, nil
}

func (r Rules) isSentinel(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	for _, s := range r.Sentinels {
		if v == s {
			return true
		}
	}
	return false
}

// firstColumn returns the index of the first column whose lowercased name
// contains any of tokens, or -1.
func firstColumn(columns []string, tokens []string) int {
	for i, col := range columns {
		lc := strings.ToLower(col)
		for _, tok := range tokens {
			if tok != "" && strings.Contains(lc, strings.ToLower(tok)) {
				return i
			}
		}
	}
	return -1
}
