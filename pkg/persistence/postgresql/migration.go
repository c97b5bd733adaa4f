package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create flows table
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				trigger_enabled BOOLEAN NOT NULL DEFAULT false,
				trigger_keywords JSONB NOT NULL DEFAULT '[]',
				trigger_match_mode VARCHAR(20) NOT NULL DEFAULT 'exact',
				connection_ids JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT false,
				is_draft BOOLEAN NOT NULL DEFAULT true,
				version INT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_organization_id ON flows(organization_id);
			CREATE INDEX idx_flows_is_active ON flows(is_active);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			-- Create flow_nodes table
			CREATE TABLE flow_nodes (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(50) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				content JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (flow_id, node_id)
			);

			CREATE INDEX idx_flow_nodes_flow_id ON flow_nodes(flow_id);
			CREATE INDEX idx_flow_nodes_type ON flow_nodes(node_type);

			-- Create flow_edges table
			CREATE TABLE flow_edges (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				edge_id VARCHAR(255) NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				source_handle VARCHAR(255) NOT NULL DEFAULT '',
				target_handle VARCHAR(255) NOT NULL DEFAULT '',
				label VARCHAR(255) NOT NULL DEFAULT '',
				edge_type VARCHAR(50) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (flow_id, edge_id)
			);

			CREATE INDEX idx_flow_edges_flow_id ON flow_edges(flow_id);
			CREATE INDEX idx_flow_edges_source ON flow_edges(flow_id, source_node_id);

			-- Create flow_versions table (immutable canvas snapshots)
			CREATE TABLE flow_versions (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				version INT NOT NULL,
				nodes JSONB NOT NULL,
				edges JSONB NOT NULL,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (flow_id, version)
			);

			-- Create sessions table
			CREATE TABLE sessions (
				id UUID PRIMARY KEY,
				conversation_id VARCHAR(255) NOT NULL,
				flow_id UUID NOT NULL,
				current_node_id VARCHAR(255) NOT NULL,
				variables JSONB NOT NULL DEFAULT '{}',
				state VARCHAR(50) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT true,
				failure_reason TEXT NOT NULL DEFAULT '',
				resume_at TIMESTAMP WITH TIME ZONE,
				state_version INT NOT NULL DEFAULT 1,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_by VARCHAR(255) NOT NULL DEFAULT '',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE
			);

			-- One active session per conversation
			CREATE UNIQUE INDEX idx_sessions_active_conversation
				ON sessions(conversation_id) WHERE is_active;
			CREATE INDEX idx_sessions_conversation_id ON sessions(conversation_id);
			CREATE INDEX idx_sessions_state ON sessions(state) WHERE is_active;

			-- Create session_timers table (durable delay resumes)
			CREATE TABLE session_timers (
				id UUID PRIMARY KEY,
				conversation_id VARCHAR(255) NOT NULL,
				session_id UUID NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				fire_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_session_timers_fire_at ON session_timers(fire_at);
			CREATE INDEX idx_session_timers_session_id ON session_timers(session_id);
		`,
	}
}
