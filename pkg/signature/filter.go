package signature

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// FilterConfig selects signatures by ID pattern and category.
type FilterConfig struct {
	Include    []string // ID patterns; only matching signatures are kept
	Exclude    []string // ID patterns; matching signatures are dropped
	Categories []string // keep signatures carrying at least one of these
}

// ParsePatterns splits a comma-separated list and trims each entry.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include, then exclude, then category selection. Empty
// lists select everything. ID patterns use .NET-style syntax, so
// lookarounds such as `^sig\.x64\.(?!prologue)` are allowed.
func Filter(sigs []*types.Signature, config FilterConfig) ([]*types.Signature, error) {
	if len(sigs) == 0 {
		return sigs, nil
	}

	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*types.Signature, 0, len(sigs))
	for _, s := range sigs {
		if len(include) > 0 {
			ok, err := matchesAny(s.ID, include)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if len(exclude) > 0 {
			ok, err := matchesAny(s.ID, exclude)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
		}
		if len(config.Categories) > 0 && !hasCategory(s, config.Categories) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func compileAll(patterns []string) ([]*regexp2.Regexp, error) {
	var out []*regexp2.Regexp
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(id string, regexes []*regexp2.Regexp) (bool, error) {
	for _, re := range regexes {
		ok, err := re.MatchString(id)
		if err != nil {
			return false, fmt.Errorf("matching %q against %q: %w", id, re.String(), err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func hasCategory(s *types.Signature, categories []string) bool {
	for _, c := range s.Categories {
		if slices.Contains(categories, c) {
			return true
		}
	}
	return false
}
