package constants

// Literal tokens that appear in stored results and rendered reports.
const (
	Unknown           = "UNKNOWN"
	Unnamed           = "UNNAMED"
	Unlabeled         = "UNLABELED"
	PendingExtraction = "<<<PENDING_EXTRACTION>>>"
)

// Extraction warnings stored on ExtractionResult.
const (
	WarnEmptySchema          = "EMPTY_SCHEMA"
	WarnFileMimeUnknown      = "FILE_MIME_UNKNOWN"
	WarnFileDownloadFailed   = "FILE_DOWNLOAD_FAILED"
	WarnFileBytesEmpty       = "FILE_BYTES_EMPTY"
	WarnLLMExtractionFailed  = "LLM_EXTRACTION_FAILED"
	WarnLLMExtractionEmpty   = "LLM_EXTRACTION_EMPTY"
	WarnMissingRequiredField = "Missing required field: "
)

// Signals attached to LLM fallback results.
const (
	SignalClassificationFailed = "LLM_CLASSIFICATION_FAILED"
	SignalBelowMinConfidence   = "BELOW_MIN_CONFIDENCE"
	SignalAbstain              = "ABSTAIN_NOT_ENOUGH_EVIDENCE"
	SignalNotInAllowlist       = "LABEL_NOT_IN_ALLOWLIST"
	SignalOutputParseFailed    = "LLM_OUTPUT_PARSE_FAILED"
)

// DefaultExtractionInstructions is used when a label carries no instructions of its own.
const DefaultExtractionInstructions = `Extract fields according to this schema. If a field is missing, return "UNKNOWN".`

// LabelSource tells where a file's resolved label came from.
type LabelSource string

const (
	LabelSourceOverride LabelSource = "OVERRIDE"
	LabelSourceMatch    LabelSource = "MATCH"
	LabelSourceFallback LabelSource = "LLM_FALLBACK"
	LabelSourceNone     LabelSource = "NONE"
)
