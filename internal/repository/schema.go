package repository

// schemaV1 is portable between sqlite and postgres. Timestamps are RFC3339 text
// and structured values are JSON text.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS jobs (
  job_id TEXT PRIMARY KEY,
  folder_id TEXT NOT NULL,
  created_at TEXT NOT NULL,
  status TEXT NOT NULL,
  report_file_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS job_files (
  job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
  file_id TEXT NOT NULL,
  name TEXT NOT NULL,
  mime_type TEXT NOT NULL DEFAULT '',
  sort_index INTEGER NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS undo_logs (
  job_id TEXT PRIMARY KEY REFERENCES jobs(job_id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  ops_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS applied_renames (
  job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
  file_id TEXT NOT NULL,
  old_name TEXT NOT NULL,
  new_name TEXT NOT NULL,
  applied_at TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS labels (
  label_id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TEXT NOT NULL,
  schema_json TEXT NOT NULL DEFAULT '{}',
  naming_template TEXT NOT NULL DEFAULT '',
  extraction_instructions TEXT NOT NULL DEFAULT '',
  fallback_instructions TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS label_examples (
  example_id TEXT PRIMARY KEY,
  label_id TEXT NOT NULL REFERENCES labels(label_id),
  file_id TEXT NOT NULL UNIQUE,
  filename TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_label_examples_label ON label_examples(label_id);

CREATE TABLE IF NOT EXISTS label_features (
  example_id TEXT PRIMARY KEY REFERENCES label_examples(example_id) ON DELETE CASCADE,
  extracted_text TEXT NOT NULL,
  embedding_json TEXT NOT NULL DEFAULT '',
  tokens_json TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ocr_results (
  job_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  text TEXT NOT NULL,
  confidence DOUBLE PRECISION NOT NULL,
  engine TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS label_matches (
  job_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  label_id TEXT NOT NULL DEFAULT '',
  score DOUBLE PRECISION NOT NULL,
  status TEXT NOT NULL,
  mode TEXT NOT NULL DEFAULT '',
  rationale TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS label_overrides (
  job_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  label_id TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS extraction_results (
  job_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  label_id TEXT NOT NULL DEFAULT '',
  schema_json TEXT NOT NULL,
  fields_json TEXT NOT NULL,
  confidences_json TEXT NOT NULL,
  needs_review BOOLEAN NOT NULL DEFAULT FALSE,
  warnings_json TEXT NOT NULL DEFAULT '[]',
  updated_at TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS llm_fallback_results (
  job_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  label_name TEXT NOT NULL DEFAULT '',
  confidence DOUBLE PRECISION NOT NULL,
  signals_json TEXT NOT NULL DEFAULT '[]',
  updated_at TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);

CREATE TABLE IF NOT EXISTS file_timings (
  job_id TEXT NOT NULL,
  file_id TEXT NOT NULL,
  ocr_ms INTEGER,
  classify_ms INTEGER,
  extract_ms INTEGER,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (job_id, file_id)
);
`
