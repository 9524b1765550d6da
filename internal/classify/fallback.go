package classify

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

// Fallback asks the generative capability for a label when deterministic
// matching found nothing. Its results are advisory only.
type Fallback struct {
	labels        repository.LabelRepository
	results       repository.ResultRepository
	gen           llm.StructuredGenerator
	minConfidence float64
	logger        *slog.Logger
	now           func() time.Time
}

func NewFallback(labels repository.LabelRepository, results repository.ResultRepository, gen llm.StructuredGenerator, minConfidence float64, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{labels: labels, results: results, gen: gen, minConfidence: minConfidence, logger: logger, now: time.Now}
}

// Candidates returns the active labels that carry fallback instructions, by name.
func (f *Fallback) Candidates(ctx context.Context) ([]llm.Candidate, error) {
	labels, err := f.labels.List(ctx, false)
	if err != nil {
		return nil, err
	}
	var out []llm.Candidate
	for _, l := range labels {
		if instr := strings.TrimSpace(l.FallbackInstructions); instr != "" {
			out = append(out, llm.Candidate{Name: l.Name, Instructions: instr})
		}
	}
	if len(out) == 0 {
		return nil, common.ValidationError{Field: "fallback_instructions", Message: "no labels have fallback instructions"}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Eligible reports whether a file should be sent to the fallback: no override,
// some OCR text, and a stored NO_MATCH.
func Eligible(fl entity.FileLabels, ocr *entity.OCRResult) bool {
	if fl.Override != nil && fl.Override.LabelID != "" {
		return false
	}
	if ocr == nil || strings.TrimSpace(ocr.Text) == "" {
		return false
	}
	return fl.Match != nil && fl.Match.Status == constants.MatchStatusNoMatch
}

// Suggest scores the candidates for one file and stores the result. When the
// capability fails the stored result abstains with LLM_CLASSIFICATION_FAILED and
// the failure is returned as a CapabilityError.
func (f *Fallback) Suggest(ctx context.Context, jobID, fileID, text string, candidates []llm.Candidate) (*entity.LLMFallbackResult, error) {
	logger := common.LoggerWith(ctx, f.logger).With("file_id", fileID)

	res := entity.LLMFallbackResult{JobID: jobID, FileID: fileID}
	scoring, genErr := f.gen.ScoreCandidates(ctx, text, candidates)
	if genErr != nil {
		logger.Warn("fallback.score_failed", "error", genErr)
		res.Signals = []string{constants.SignalClassificationFailed}
	} else {
		res.LabelName, res.Confidence, res.Signals = Normalize(scoring, candidates, f.minConfidence)
	}
	res.UpdatedAt = f.now().UTC()

	if err := f.results.SaveFallback(ctx, res); err != nil {
		return nil, err
	}
	if genErr != nil {
		return &res, common.NewCapabilityError(common.CapGeneration, "score_candidates", fileID, genErr)
	}
	logger.Info("fallback.file.ok", "label", res.LabelName, "confidence", res.Confidence, "signals", res.Signals)
	return &res, nil
}

// Normalize turns a raw scoring into the stored suggestion. Names outside the
// candidate allowlist are dropped; the best remaining score must reach
// minConfidence or the result abstains.
func Normalize(s llm.Scoring, candidates []llm.Candidate, minConfidence float64) (string, float64, []string) {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.Name] = true
	}
	signals := append([]string(nil), s.Signals...)

	var kept llm.Scoring
	for _, sc := range s.Scores {
		if sc.Name == "" {
			continue
		}
		if !allowed[sc.Name] {
			signals = append(signals, constants.SignalNotInAllowlist)
			continue
		}
		sc.Confidence = llm.ClampConfidence(sc.Confidence)
		kept.Scores = append(kept.Scores, sc)
	}

	name, conf := "", 0.0
	if best, ok := kept.Best(); ok {
		name, conf = best.Name, best.Confidence
	}
	if name == "" || conf < minConfidence {
		name = ""
		signals = append(signals, constants.SignalBelowMinConfidence, constants.SignalAbstain)
	}
	return name, conf, llm.NormalizeSignals(signals)
}
