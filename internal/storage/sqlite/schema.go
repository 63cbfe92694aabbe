package sqlite

// Schema is the embedded DDL for the SQLite backend. Statements use
// IF NOT EXISTS so the schema can be (re)applied on every open.
//
// Embeddings are stored inline as little-endian float64 BLOBs; no native
// vector column type is required for correctness at this backend's scale.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	property_id TEXT,
	contact_id TEXT,
	memory_type TEXT NOT NULL DEFAULT 'fact',
	content TEXT NOT NULL,
	embedding BLOB,
	embedding_model TEXT,
	embedding_dimensions INTEGER,
	source_type TEXT NOT NULL DEFAULT 'system',
	source_id TEXT,
	confidence REAL NOT NULL DEFAULT 1.0,
	importance REAL NOT NULL DEFAULT 0.5,
	status TEXT NOT NULL DEFAULT 'active',
	expires_at TIMESTAMP,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMP,
	metadata TEXT,
	created_by TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_memories_property_type ON memories(property_id, memory_type);
CREATE INDEX IF NOT EXISTS ix_memories_contact_type ON memories(contact_id, memory_type);
CREATE INDEX IF NOT EXISTS ix_memories_source ON memories(source_type, source_id);
CREATE INDEX IF NOT EXISTS ix_memories_status ON memories(status);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	property_id TEXT NOT NULL,
	contact_id TEXT,
	conversation_type TEXT NOT NULL,
	source_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	key_points TEXT,
	action_items TEXT,
	sentiment TEXT,
	sentiment_score REAL,
	topics TEXT,
	follow_up_required INTEGER NOT NULL DEFAULT 0,
	follow_up_date TIMESTAMP,
	follow_up_notes TEXT,
	summary_embedding BLOB,
	conversation_at TIMESTAMP NOT NULL,
	processed_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_source ON conversations(conversation_type, source_id);
CREATE INDEX IF NOT EXISTS ix_conversations_scope ON conversations(property_id, contact_id);

CREATE TABLE IF NOT EXISTS contact_preferences (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL UNIQUE,
	preferred_channel TEXT,
	preferred_time TEXT,
	preferred_days TEXT,
	timezone TEXT,
	formality_level TEXT,
	language TEXT NOT NULL DEFAULT 'en',
	do_not_call INTEGER NOT NULL DEFAULT 0,
	do_not_text INTEGER NOT NULL DEFAULT 0,
	do_not_email INTEGER NOT NULL DEFAULT 0,
	notes TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_tasks (
	id TEXT PRIMARY KEY,
	initiated_by TEXT NOT NULL,
	property_id TEXT,
	contact_id TEXT,
	task_type TEXT NOT NULL DEFAULT 'custom',
	instruction TEXT NOT NULL,
	parsed_intent TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	status_message TEXT,
	context_snapshot TEXT,
	result_summary TEXT,
	result_data TEXT,
	call_id TEXT,
	sms_id TEXT,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	execution_time_ms INTEGER,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	last_error TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_agent_tasks_status ON agent_tasks(status);
CREATE INDEX IF NOT EXISTS ix_agent_tasks_scope ON agent_tasks(property_id, contact_id);
CREATE INDEX IF NOT EXISTS ix_agent_tasks_call ON agent_tasks(call_id);
CREATE INDEX IF NOT EXISTS ix_agent_tasks_sms ON agent_tasks(sms_id);

CREATE TABLE IF NOT EXISTS agent_task_steps (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES agent_tasks(id) ON DELETE CASCADE,
	step_number INTEGER NOT NULL,
	step_type TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	input TEXT,
	output TEXT,
	error_message TEXT,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_agent_task_steps_task ON agent_task_steps(task_id, step_number);
`
