package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE approvals (
				id UUID PRIMARY KEY,
				workflow_type VARCHAR(100) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
				requested_by VARCHAR(255) NOT NULL,
				context JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_approvals_status ON approvals(status);
			CREATE INDEX idx_approvals_workflow ON approvals(workflow_type, workflow_id);
			CREATE INDEX idx_approvals_requested_by ON approvals(requested_by);
			CREATE INDEX idx_approvals_created_at ON approvals(created_at);

			CREATE TABLE approval_steps (
				id UUID PRIMARY KEY,
				approval_id UUID NOT NULL REFERENCES approvals(id) ON DELETE CASCADE,
				step_order INT NOT NULL,
				assigned_to VARCHAR(255),
				status VARCHAR(20) NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
				comment TEXT NOT NULL DEFAULT '',
				decided_by VARCHAR(255),
				decided_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (approval_id, step_order)
			);

			CREATE INDEX idx_approval_steps_approval_id ON approval_steps(approval_id);
			CREATE INDEX idx_approval_steps_assigned_to ON approval_steps(assigned_to);
		`,
	}
}
