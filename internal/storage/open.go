package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pawpal/internal/care"
	logx "pawpal/pkg/logx"
)

// Store is the persistence API used by the services.
type Store interface {
	ListOwners(ctx context.Context) ([]string, error)
	LoadOwner(ctx context.Context, id string) (*care.Owner, error)
	SaveOwner(ctx context.Context, o *care.Owner) error
	DeleteOwner(ctx context.Context, id string) error

	SavePlan(ctx context.Context, p PlanRecord) error
	LoadPlan(ctx context.Context, ownerID string, day care.Date) (*PlanRecord, error)

	AppendAudit(ctx context.Context, e AuditEntry) error

	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)

	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when storage
// is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func checkOwner(o *care.Owner) error {
	if o == nil {
		return errors.New("owner is nil")
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("owner %q: %w", o.ID, err)
	}
	return nil
}
