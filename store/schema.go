package store

// schemaSQL holds the base DDL applied by migration 1. Later migrations
// are additive ALTERs appended in migrations.go; never edit statements
// here once they have shipped.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS kb (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    source_url TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
    id TEXT PRIMARY KEY,
    kb_id TEXT NOT NULL REFERENCES kb(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    path TEXT NOT NULL,
    title TEXT,
    content_hash TEXT NOT NULL,
    fetched_at DATETIME NOT NULL,
    status_code INTEGER,
    content_len INTEGER,
    UNIQUE(kb_id, path)
);

CREATE INDEX IF NOT EXISTS idx_pages_kb ON pages(kb_id);
CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);

CREATE TABLE IF NOT EXISTS links (
    id INTEGER PRIMARY KEY,
    from_page_id TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    to_url TEXT NOT NULL,
    kind TEXT
);

CREATE INDEX IF NOT EXISTS idx_links_from ON links(from_page_id);

CREATE TABLE IF NOT EXISTS crawl_jobs (
    id TEXT PRIMARY KEY,
    kb_id TEXT NOT NULL REFERENCES kb(id) ON DELETE CASCADE,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    stats_json TEXT
);

CREATE TABLE IF NOT EXISTS enrichment_cache (
    kb_id TEXT NOT NULL,
    artifact_type TEXT NOT NULL,
    prompt_hash TEXT NOT NULL,
    model_id TEXT NOT NULL,
    result_json TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (kb_id, artifact_type, prompt_hash, model_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
    title,
    path,
    content='pages',
    content_rowid='rowid',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS pages_ai AFTER INSERT ON pages BEGIN
    INSERT INTO pages_fts(rowid, title, path) VALUES (new.rowid, new.title, new.path);
END;
CREATE TRIGGER IF NOT EXISTS pages_ad AFTER DELETE ON pages BEGIN
    INSERT INTO pages_fts(pages_fts, rowid, title, path) VALUES ('delete', old.rowid, old.title, old.path);
END;
CREATE TRIGGER IF NOT EXISTS pages_au AFTER UPDATE ON pages BEGIN
    INSERT INTO pages_fts(pages_fts, rowid, title, path) VALUES ('delete', old.rowid, old.title, old.path);
    INSERT INTO pages_fts(rowid, title, path) VALUES (new.rowid, new.title, new.path);
END;
`
