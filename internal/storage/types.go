package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage. Driver "" or "none" disables it.
type Config struct {
	Driver      string
	Path        string // file: directory; sqlite: database file
	DSN         string // postgres
	BusyTimeout time.Duration
}

// AuditEntry records one state-changing action.
type AuditEntry struct {
	At       time.Time `json:"at"`
	OwnerID  string    `json:"owner_id"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Target   string    `json:"target,omitempty"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
	MetaJSON string    `json:"meta,omitempty"`
}
