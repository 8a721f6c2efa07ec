package runner

import (
	"context"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// SessionCreator registers a pending session.
type SessionCreator interface {
	Create(ctx context.Context, id string, createdAt time.Time) (domain.Session, error)
}

// Executor performs one comparison and records its outcome under id.
type Executor interface {
	Run(ctx context.Context, id string, reqDoc, implDoc domain.Document) error
}

// Cleaner prunes and summarises stored sessions.
type Cleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Stats(ctx context.Context) (domain.SessionStats, error)
}
