package modelid

import "strings"

// Normalize canonicalizes biophysical model names and common aliases such
// as "Adair_Model" or "hill-curve". Unknown names are returned lowercased
// and dash-separated.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalModelName(candidate); ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	stripped := strings.Trim(strings.TrimPrefix(normalized, "model-"), "-")
	if stripped != normalized && stripped != "" {
		candidates = append(candidates, stripped)
	}
	for _, suffix := range []string{"-model", "-curve", "-binding"} {
		if trimmed := strings.TrimSuffix(stripped, suffix); trimmed != stripped && trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	return candidates
}

func canonicalModelName(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "-", "") {
	case "adair", "adair2", "twositeadair":
		return "adair", true
	case "hill", "hillequation":
		return "hill", true
	default:
		return "", false
	}
}
