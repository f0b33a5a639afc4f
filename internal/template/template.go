package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([A-Z][A-Z0-9_]*)\}`)

// Params holds runtime parameters keyed by lowercase name. The placeholder
// {COMPANY_ID} resolves to Params["company_id"].
type Params map[string]string

// Key returns the parameter key a placeholder name refers to.
func Key(placeholder string) string {
	return strings.ToLower(placeholder)
}

// Resolve replaces every {NAME} in s with its parameter value.
func Resolve(s string, params Params) (string, error) {
	var resolveErr error
	result := placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		val, ok := params[Key(name)]
		if !ok {
			if resolveErr == nil {
				resolveErr = fmt.Errorf("unresolved placeholder {%s}", name)
			}
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// ResolveParts splits s on commas and resolves each part.
func ResolveParts(s string, params Params) ([]string, error) {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		r, err := Resolve(p, params)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Refs returns the distinct placeholder names used in s, sorted.
func Refs(s string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// Missing returns the placeholders in s that params cannot resolve.
func Missing(s string, params Params) []string {
	var missing []string
	for _, name := range Refs(s) {
		if _, ok := params[Key(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
