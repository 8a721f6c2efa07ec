package health

import "context"

// DBPinger checks session store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks a remote provider (language model, embeddings).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
