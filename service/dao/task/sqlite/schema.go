package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	seq        INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_stage ON tasks(stage, created_at, seq);
`
