package analysis

import (
	"strings"

	"lexisense/internal/models"
)

// Merge reduces per-chunk partials, given in chunk order, into one result.
// The summary is the first non-empty one. List entries are deduplicated on a
// case and whitespace insensitive key, keeping the first occurrence and its
// original spelling.
func Merge(partials []models.PartialAnalysis) models.AnalysisResult {
	out := models.AnalysisResult{
		Parties:    []models.Party{},
		Dates:      []models.KeyDate{},
		Risks:      []models.Risk{},
		ChunkCount: len(partials),
	}
	seenParties := map[string]struct{}{}
	seenDates := map[string]struct{}{}
	seenRisks := map[string]struct{}{}

	for _, p := range partials {
		if out.Summary == "" {
			out.Summary = strings.TrimSpace(p.Summary)
		}
		for _, party := range p.Parties {
			if addKey(seenParties, party.Name, party.Role) {
				out.Parties = append(out.Parties, party)
			}
		}
		for _, d := range p.Dates {
			if addKey(seenDates, d.Label, d.Date) {
				out.Dates = append(out.Dates, d)
			}
		}
		for _, r := range p.Risks {
			if addKey(seenRisks, string(r.Severity), r.Description) {
				out.Risks = append(out.Risks, r)
			}
		}
	}
	return out
}

func addKey(seen map[string]struct{}, fields ...string) bool {
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}
	key := strings.Join(fields, "\x1f")
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}
