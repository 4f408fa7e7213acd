package store

// Schema contains the complete DDL for the privyloop tables.
const Schema = `
-- Platform configurations: domain identity + scraping recipe per platform
CREATE TABLE IF NOT EXISTS platforms (
    id                TEXT PRIMARY KEY,
    slug              TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL,
    domain            TEXT NOT NULL,
    website_url       TEXT NOT NULL DEFAULT '',
    privacy_page_url  TEXT NOT NULL,
    config_version    TEXT NOT NULL DEFAULT 'v1',
    selectors         TEXT NOT NULL,
    rate_limit        TEXT NOT NULL DEFAULT '',
    manifest_patterns TEXT NOT NULL DEFAULT '[]',
    is_active         INTEGER NOT NULL DEFAULT 1,
    is_supported      INTEGER NOT NULL DEFAULT 1,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_platforms_slug ON platforms(slug);

-- Privacy templates: shared structural schemas, versioned, never deleted
CREATE TABLE IF NOT EXISTS privacy_templates (
    id                TEXT PRIMARY KEY,
    platform_id       TEXT NOT NULL REFERENCES platforms(id),
    version           TEXT NOT NULL,
    template_hash     TEXT NOT NULL,
    structure         TEXT NOT NULL,
    usage_count       INTEGER NOT NULL DEFAULT 0,
    active_user_count INTEGER NOT NULL DEFAULT 0,
    is_active         INTEGER NOT NULL DEFAULT 1,
    created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_templates_platform ON privacy_templates(platform_id, is_active, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_templates_hash ON privacy_templates(template_hash);

-- Snapshots: append-only scan history per user+platform, settings stored
-- as template deltas
CREATE TABLE IF NOT EXISTS snapshots (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    platform_id     TEXT NOT NULL REFERENCES platforms(id),
    template_id     TEXT REFERENCES privacy_templates(id),
    settings        TEXT NOT NULL,
    scan_id         TEXT NOT NULL,
    scan_method     TEXT NOT NULL,
    changes         TEXT NOT NULL DEFAULT '',
    has_changes     INTEGER NOT NULL DEFAULT 0,
    scan_status     TEXT NOT NULL DEFAULT 'completed',
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    completion_rate REAL NOT NULL DEFAULT 0,
    confidence      REAL NOT NULL DEFAULT 0,
    scanned_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_platform ON snapshots(user_id, platform_id, scanned_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_platform ON snapshots(platform_id);
`
