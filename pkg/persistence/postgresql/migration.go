package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE graphs (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_graphs_active ON graphs(active);
			CREATE INDEX idx_graphs_created_at ON graphs(created_at);
		`,
		2: `
			CREATE TABLE webhooks (
				key UUID PRIMARY KEY,
				graph_id UUID NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
				method VARCHAR(10) NOT NULL,
				secret TEXT NOT NULL DEFAULT '',
				allowed_origins JSONB,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				call_count BIGINT NOT NULL DEFAULT 0,
				last_called_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_webhooks_graph_id ON webhooks(graph_id);
			CREATE INDEX idx_webhooks_active ON webhooks(active);
		`,
	}
}
