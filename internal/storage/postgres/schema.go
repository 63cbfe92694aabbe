package postgres

// Schema contains the DDL for the PostgreSQL backend. All statements use
// IF NOT EXISTS so the schema can be (re)applied on every open.
//
// Embeddings live in a pgvector column, which keeps a native ANN index
// available once candidate sets outgrow the in-process scan.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	property_id TEXT,
	contact_id TEXT,
	memory_type TEXT NOT NULL DEFAULT 'fact',
	content TEXT NOT NULL,
	embedding vector(1536),
	embedding_model TEXT,
	embedding_dimensions INTEGER,
	source_type TEXT NOT NULL DEFAULT 'system',
	source_id TEXT,
	confidence REAL NOT NULL DEFAULT 1.0,
	importance REAL NOT NULL DEFAULT 0.5,
	status TEXT NOT NULL DEFAULT 'active',
	expires_at TIMESTAMPTZ,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMPTZ,
	metadata JSONB,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
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
	key_points JSONB,
	action_items JSONB,
	sentiment TEXT,
	sentiment_score REAL,
	topics JSONB,
	follow_up_required BOOLEAN NOT NULL DEFAULT FALSE,
	follow_up_date TIMESTAMPTZ,
	follow_up_notes TEXT,
	summary_embedding vector(1536),
	conversation_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_source ON conversations(conversation_type, source_id);
CREATE INDEX IF NOT EXISTS ix_conversations_scope ON conversations(property_id, contact_id);

CREATE TABLE IF NOT EXISTS contact_preferences (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL UNIQUE,
	preferred_channel TEXT,
	preferred_time TEXT,
	preferred_days JSONB,
	timezone TEXT,
	formality_level TEXT,
	language TEXT NOT NULL DEFAULT 'en',
	do_not_call BOOLEAN NOT NULL DEFAULT FALSE,
	do_not_text BOOLEAN NOT NULL DEFAULT FALSE,
	do_not_email BOOLEAN NOT NULL DEFAULT FALSE,
	notes TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_tasks (
	id TEXT PRIMARY KEY,
	initiated_by TEXT NOT NULL,
	property_id TEXT,
	contact_id TEXT,
	task_type TEXT NOT NULL DEFAULT 'custom',
	instruction TEXT NOT NULL,
	parsed_intent JSONB,
	status TEXT NOT NULL DEFAULT 'pending',
	status_message TEXT,
	context_snapshot JSONB,
	result_summary TEXT,
	result_data JSONB,
	call_id TEXT,
	sms_id TEXT,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	execution_time_ms BIGINT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
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
	input JSONB,
	output JSONB,
	error_message TEXT,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_agent_task_steps_task ON agent_task_steps(task_id, step_number);
`

// MigrationVectorIndex adds an approximate nearest-neighbor index once data
// exists. ivfflat refuses to build on an empty table, so the DO block guards
// against that and the migration stays safe to re-run.
const MigrationVectorIndex = `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_indexes WHERE indexname = 'ix_memories_embedding_cosine'
  ) THEN
    IF EXISTS (SELECT 1 FROM memories LIMIT 1) THEN
      EXECUTE 'CREATE INDEX ix_memories_embedding_cosine ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;
END$$;
`
