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
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

// Library is a snapshot of the active label library, ordered by name then id.
type Library struct {
	Profiles []entity.LabelProfile
}

// NewLibrary orders profiles so ranking ties resolve the same way every run.
func NewLibrary(profiles []entity.LabelProfile) *Library {
	ps := append([]entity.LabelProfile(nil), profiles...)
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Label.Name != ps[j].Label.Name {
			return ps[i].Label.Name < ps[j].Label.Name
		}
		return ps[i].Label.ID < ps[j].Label.ID
	})
	return &Library{Profiles: ps}
}

// Classifier matches document text against the label library. It only reads
// the library.
type Classifier struct {
	labels     repository.LabelRepository
	results    repository.ResultRepository
	sim        Similarity
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

func NewClassifier(labels repository.LabelRepository, results repository.ResultRepository, sim Similarity, th Thresholds, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sim == nil {
		sim = LexicalSimilarity{}
	}
	return &Classifier{labels: labels, results: results, sim: sim, thresholds: th, logger: logger, now: time.Now}
}

// Mode reports the similarity variant in use.
func (c *Classifier) Mode() constants.SimilarityMode { return c.sim.Mode() }

// Library loads the active labels with their example features.
func (c *Classifier) Library(ctx context.Context) (*Library, error) {
	profiles, err := c.labels.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return NewLibrary(profiles), nil
}

// ClassifyText scores text against the library. A failed document embedding
// drops this call to lexical scoring and says so in the rationale.
func (c *Classifier) ClassifyText(ctx context.Context, lib *Library, text string) Decision {
	sim := c.sim
	note := ""
	doc, err := sim.Document(ctx, text)
	if err != nil {
		c.logger.Warn("classify.embedding_failed", "error", err)
		sim = LexicalSimilarity{}
		doc, _ = sim.Document(ctx, text)
		note = " (embedding failed: lexical fallback)"
	}
	mode := sim.Mode()
	threshold := c.thresholds.For(mode)
	ranked := Rank(lib.Profiles, doc, sim)
	d := Decide(ranked, threshold, c.thresholds.Margin, c.thresholds.Strict, string(mode))
	d.Mode = mode
	d.Rationale += note
	return d
}

// ClassifyFile classifies the stored OCR text of one file and saves the match,
// overwriting any previous one. A file without an OCR record is NotFound; blank
// text is stored as NO_MATCH with score 0.
func (c *Classifier) ClassifyFile(ctx context.Context, lib *Library, jobID, fileID string) (*entity.LabelMatch, error) {
	logger := common.LoggerWith(ctx, c.logger).With("file_id", fileID)
	start := time.Now()

	ocr, err := c.results.GetOCR(ctx, jobID, fileID)
	if err != nil {
		return nil, err
	}

	var d Decision
	if strings.TrimSpace(ocr.Text) == "" {
		d = Decision{Status: constants.MatchStatusNoMatch, Mode: c.sim.Mode(), Rationale: "empty text"}
	} else {
		d = c.ClassifyText(ctx, lib, ocr.Text)
	}

	m := entity.LabelMatch{
		JobID:     jobID,
		FileID:    fileID,
		LabelID:   d.LabelID,
		Score:     d.Score,
		Status:    d.Status,
		Mode:      d.Mode,
		Rationale: d.Rationale,
		UpdatedAt: c.now().UTC(),
	}
	if err := c.results.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	if err := c.results.SaveTimings(ctx, entity.FileTimings{
		JobID: jobID, FileID: fileID, ClassifyMs: utils.Millis(time.Since(start)), UpdatedAt: c.now().UTC(),
	}); err != nil {
		logger.Warn("classify.timings_failed", "error", err)
	}
	logger.Info("classify.file.ok", "status", m.Status, "label_id", m.LabelID, "score", m.Score, "mode", m.Mode)
	return &m, nil
}
