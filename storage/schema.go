package storage

// Timestamps are stored as unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS news_article (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	link_hash    TEXT NOT NULL UNIQUE,
	link         TEXT NOT NULL,
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	publisher    TEXT NOT NULL DEFAULT '',
	channel      TEXT NOT NULL,
	published_at INTEGER NOT NULL,
	fetched_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_news_article_published ON news_article(published_at);

CREATE TABLE IF NOT EXISTS delivery_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id    INTEGER NOT NULL REFERENCES news_article(id) ON DELETE CASCADE,
	channel       TEXT NOT NULL,
	success       INTEGER NOT NULL,
	http_status   INTEGER NOT NULL DEFAULT 0,
	response_body TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	sent_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delivery_log_sent ON delivery_log(sent_at);
CREATE INDEX IF NOT EXISTS idx_delivery_log_article ON delivery_log(article_id);

CREATE TABLE IF NOT EXISTS keyword_counter (
	keyword    TEXT PRIMARY KEY,
	count      INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_keyword_counter_created ON keyword_counter(created_at);

CREATE TABLE IF NOT EXISTS channel_watermark (
	channel    TEXT PRIMARY KEY,
	last_seen  INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`
