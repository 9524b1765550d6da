package entity

import "github.com/joseph-ayodele/folder-renamer/constants"

// ResolvedLabel is the label a file ends up with and where it came from.
type ResolvedLabel struct {
	LabelID string
	Name    string
	Source  constants.LabelSource
}

// FileLabels bundles the per-file labelling records of a job. Any of them may be nil.
type FileLabels struct {
	Override *Override
	Match    *LabelMatch
	Fallback *LLMFallbackResult
}

// ResolveDeterministic applies override > MATCHED. Fallback suggestions are ignored.
// Overrides and matches pointing at unknown labels are skipped.
func ResolveDeterministic(fl FileLabels, labels map[string]Label) (ResolvedLabel, bool) {
	if fl.Override != nil && fl.Override.LabelID != "" {
		if l, ok := labels[fl.Override.LabelID]; ok {
			return ResolvedLabel{LabelID: l.ID, Name: l.Name, Source: constants.LabelSourceOverride}, true
		}
	}
	if fl.Match != nil && fl.Match.Status == constants.MatchStatusMatched && fl.Match.LabelID != "" {
		if l, ok := labels[fl.Match.LabelID]; ok {
			return ResolvedLabel{LabelID: l.ID, Name: l.Name, Source: constants.LabelSourceMatch}, true
		}
	}
	return ResolvedLabel{Source: constants.LabelSourceNone}, false
}

// ResolveForReport applies override > MATCHED > LLM fallback suggestion.
func ResolveForReport(fl FileLabels, labels map[string]Label) (ResolvedLabel, bool) {
	if r, ok := ResolveDeterministic(fl, labels); ok {
		return r, true
	}
	if fl.Fallback != nil && fl.Fallback.LabelName != "" {
		r := ResolvedLabel{Name: fl.Fallback.LabelName, Source: constants.LabelSourceFallback}
		for _, l := range labels {
			if l.Name == fl.Fallback.LabelName {
				r.LabelID = l.ID
				break
			}
		}
		return r, true
	}
	return ResolvedLabel{Source: constants.LabelSourceNone}, false
}

// LabelsByID indexes labels by id.
func LabelsByID(labels []Label) map[string]Label {
	out := make(map[string]Label, len(labels))
	for _, l := range labels {
		out[l.ID] = l
	}
	return out
}
