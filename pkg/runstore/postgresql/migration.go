package postgresql

// migrations returns the schema migrations for the run store. The
// workflow_runs row layout is additive-compatible: new columns must be
// nullable or defaulted so in-flight runs survive a deployment.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_runs (
				id                 TEXT PRIMARY KEY,
				workflow_id        TEXT NOT NULL,
				status             TEXT NOT NULL,
				trigger_event      TEXT NOT NULL DEFAULT '',
				trigger_data       JSONB,
				variables          JSONB,
				step_results       JSONB,
				completed_steps    JSONB,
				current_step_index INTEGER NOT NULL DEFAULT 0,
				resume_key         TEXT NOT NULL DEFAULT '',
				approval           JSONB,
				last_error         TEXT NOT NULL DEFAULT '',
				claimed_by         TEXT NOT NULL DEFAULT '',
				started_at         TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at       TIMESTAMP WITH TIME ZONE,
				updated_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_runs_status
				ON workflow_runs (status);

			CREATE INDEX IF NOT EXISTS idx_workflow_runs_workflow_id
				ON workflow_runs (workflow_id);
		`,
	}
}
