package constants

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusCreated    JobStatus = "CREATED"
	JobStatusOCRDone    JobStatus = "OCR_DONE"
	JobStatusClassified JobStatus = "CLASSIFIED"
	JobStatusExtracted  JobStatus = "EXTRACTED"
	JobStatusApplied    JobStatus = "APPLIED"
	JobStatusReported   JobStatus = "REPORTED"
)

var jobStatusRank = map[JobStatus]int{
	JobStatusCreated:    0,
	JobStatusOCRDone:    1,
	JobStatusClassified: 2,
	JobStatusExtracted:  3,
	JobStatusApplied:    4,
	JobStatusReported:   5,
}

// Before reports whether s is an earlier lifecycle step than other.
// Unknown values rank as CREATED.
func (s JobStatus) Before(other JobStatus) bool {
	return jobStatusRank[s] < jobStatusRank[other]
}

// MatchStatus is the outcome of deterministic classification.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "MATCHED"
	MatchStatusAmbiguous MatchStatus = "AMBIGUOUS"
	MatchStatusNoMatch   MatchStatus = "NO_MATCH"
)

// Valid reports whether s is one of the known statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusMatched, MatchStatusAmbiguous, MatchStatusNoMatch:
		return true
	}
	return false
}

// SimilarityMode names the scoring variant used for a classification.
type SimilarityMode string

const (
	ModeEmbeddings SimilarityMode = "embeddings"
	ModeLexical    SimilarityMode = "lexical"
)
