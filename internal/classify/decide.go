package classify

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// Thresholds configures Decide.
type Thresholds struct {
	Match   float64 // embedding mode
	Lexical float64 // lexical mode
	Margin  float64
	// Strict requires the runner-up to reach the threshold for AMBIGUOUS.
	Strict bool
}

func ThresholdsFrom(c common.ClassifierConfig) Thresholds {
	return Thresholds{
		Match:   c.MatchThreshold,
		Lexical: c.LexicalMatchThreshold,
		Margin:  c.AmbiguityMargin,
		Strict:  c.StrictAmbiguity,
	}
}

// For returns the active threshold of a mode.
func (t Thresholds) For(mode constants.SimilarityMode) float64 {
	if mode == constants.ModeLexical {
		return t.Lexical
	}
	return t.Match
}

// Ranked is a label's best score over its examples.
type Ranked struct {
	LabelID string
	Name    string
	Score   float64
}

// Decision is the outcome of Decide.
type Decision struct {
	LabelID   string
	Score     float64
	Status    constants.MatchStatus
	Mode      constants.SimilarityMode
	Rationale string
}

// Rank scores every label by its best example. Labels with no scorable example
// are left out. The result is ordered by score descending, then name, then id.
func Rank(profiles []entity.LabelProfile, doc Document, sim Similarity) []Ranked {
	out := make([]Ranked, 0, len(profiles))
	for _, p := range profiles {
		best, ok := 0.0, false
		for _, f := range p.Features {
			s, scored := sim.Score(doc, f)
			if !scored {
				continue
			}
			if !ok || s > best {
				best, ok = s, true
			}
		}
		if ok {
			out = append(out, Ranked{LabelID: p.Label.ID, Name: p.Label.Name, Score: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.LabelID < b.LabelID
	})
	return out
}

// Decide applies the threshold and ambiguity rules to a ranking.
//   - best below threshold: NO_MATCH
//   - runner-up within margin (and, when strict, at or above threshold): AMBIGUOUS
//   - otherwise MATCHED with the top label
//
// Only MATCHED carries a label id; the score is kept for every status.
func Decide(ranked []Ranked, threshold, margin float64, strict bool, method string) Decision {
	d := Decision{Status: constants.MatchStatusNoMatch}
	if len(ranked) == 0 {
		d.Rationale = fmt.Sprintf("%s no scorable labels threshold=%.4f", method, threshold)
		return d
	}
	best := ranked[0]
	d.Score = best.Score

	second := "none"
	var hasSecond bool
	var secondScore float64
	if len(ranked) > 1 {
		hasSecond, secondScore = true, ranked[1].Score
		second = fmt.Sprintf("%.4f", secondScore)
	}
	d.Rationale = fmt.Sprintf("%s best=%.4f second=%s threshold=%.4f margin=%.4f", method, best.Score, second, threshold, margin)

	switch {
	case best.Score < threshold:
		d.Status = constants.MatchStatusNoMatch
	case hasSecond && best.Score-secondScore < margin && (!strict || secondScore >= threshold):
		d.Status = constants.MatchStatusAmbiguous
	default:
		d.Status = constants.MatchStatusMatched
		d.LabelID = best.LabelID
	}
	return d
}
