package graph

const planSchema = `
CREATE TABLE IF NOT EXISTS plan_batches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'open'
);

CREATE TABLE IF NOT EXISTS plan_statements (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id  INTEGER NOT NULL REFERENCES plan_batches(id),
	name      TEXT NOT NULL,
	text      TEXT NOT NULL,
	labels    TEXT NOT NULL DEFAULT '',
	params    TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS plan_entities (
	id    TEXT PRIMARY KEY,
	kind  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plan_supers (
	child   TEXT NOT NULL,
	parent  TEXT NOT NULL,
	PRIMARY KEY (child, parent)
);

CREATE INDEX IF NOT EXISTS idx_plan_statements_batch ON plan_statements(batch_id);
CREATE INDEX IF NOT EXISTS idx_plan_supers_parent ON plan_supers(parent);
`

// chainsQuery walks _SUPER edges upward from every type. The path column
// joins ids with the unit separator so ids may contain any printable text.
const chainsQuery = `
WITH RECURSIVE walk(node, path, depth) AS (
	SELECT e.id, e.id, 0
	FROM plan_entities e
	WHERE e.kind = 'Type'
	UNION ALL
	SELECT s.parent, w.path || char(31) || s.parent, w.depth + 1
	FROM walk w
	JOIN plan_supers s ON s.child = w.node
	WHERE w.depth < ?
)
SELECT path FROM walk
WHERE node = ? AND depth > 0
ORDER BY depth ASC, path ASC
`
