package store

// Schema v1 - version tracking and run history.
// The combined dataset table is not part of the schema: its columns follow
// whatever the last upload produced, so Save recreates it every time.
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per update run, successful or not
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  completed_at TEXT,
  processed_on TEXT NOT NULL,
  row_count INTEGER DEFAULT 0,
  column_count INTEGER DEFAULT 0,
  sources TEXT,
  status TEXT NOT NULL,
  error TEXT
);
`

// Schema v2 - history listing index
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// datasetTable holds the last saved combined table
const datasetTable = "datos_combinados"
