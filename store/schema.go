package store

// schemaSQL is the DDL for all tables, including the FTS5 index over
// question and answer text.
const schemaSQL = `
-- Extraction runs with hash-based change detection
CREATE TABLE IF NOT EXISTS extractions (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    total_questions INTEGER DEFAULT 0,
    with_answers INTEGER DEFAULT 0,
    with_images INTEGER DEFAULT 0,
    total_images INTEGER DEFAULT 0,
    dropped_images INTEGER DEFAULT 0,
    failures INTEGER DEFAULT 0,
    processing_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per extracted question
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    extraction_id INTEGER NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
    question_no INTEGER NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    has_answer INTEGER NOT NULL DEFAULT 0,
    degraded INTEGER NOT NULL DEFAULT 0
);

-- Image references attached to a question, in stream order
CREATE TABLE IF NOT EXISTS question_images (
    id INTEGER PRIMARY KEY,
    question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    role TEXT NOT NULL,
    filename TEXT,
    format TEXT,
    width INTEGER,
    height INTEGER
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS questions_fts USING fts5(
    question,
    answer,
    content='questions',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS questions_ai AFTER INSERT ON questions BEGIN
    INSERT INTO questions_fts(rowid, question, answer) VALUES (new.id, new.question, new.answer);
END;
CREATE TRIGGER IF NOT EXISTS questions_ad AFTER DELETE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, question, answer) VALUES ('delete', old.id, old.question, old.answer);
END;
CREATE TRIGGER IF NOT EXISTS questions_au AFTER UPDATE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, question, answer) VALUES ('delete', old.id, old.question, old.answer);
    INSERT INTO questions_fts(rowid, question, answer) VALUES (new.id, new.question, new.answer);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_questions_extraction ON questions(extraction_id);
CREATE INDEX IF NOT EXISTS idx_question_images_question ON question_images(question_id);
CREATE INDEX IF NOT EXISTS idx_extractions_hash ON extractions(content_hash);
`
