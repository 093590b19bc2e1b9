package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"pawpal/internal/care"
	logx "pawpal/pkg/logx"
)

// fileStore keeps one JSON document per owner and per plan.
//
// Layout under the configured directory:
//
//	owners/<owner>.json
//	plans/<owner>/<YYYY-MM-DD>.json
//	audit.jsonl            append-only
//	dedup.snapshot.json    compacted dedup map
//	dedup.journal.jsonl    dedup writes since the last compaction
//
// Documents are replaced via temp file and rename, so readers never see a
// partial write.
type fileStore struct {
	log logx.Logger
	dir string

	mu sync.Mutex

	auditFile *os.File

	dedupSnapshotPath string
	dedupJournalFile  *os.File
	dedup             map[string]int64 // unix milli
	dedupWrites       int
}

type dedupRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

const compactEvery = 1000

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	for _, sub := range []string{"owners", "plans"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}

	af, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	snapPath := filepath.Join(dir, "dedup.snapshot.json")
	journalPath := filepath.Join(dir, "dedup.journal.jsonl")
	dedup := map[string]int64{}
	if err := loadDedupSnapshot(snapPath, dedup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("dedup snapshot unreadable; starting empty", logx.Err(err))
	}
	if err := replayDedupJournal(journalPath, dedup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("dedup journal unreadable", logx.Err(err))
	}
	pruneExpiredDedup(dedup, time.Now())

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}

	log.Debug("file store opened", logx.String("dir", dir), logx.Int("dedup_keys", len(dedup)))
	return &fileStore{
		log:               log,
		dir:               dir,
		auditFile:         af,
		dedupSnapshotPath: snapPath,
		dedupJournalFile:  jf,
		dedup:             dedup,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	if s.dedupJournalFile != nil {
		errs = append(errs, s.dedupJournalFile.Close())
		s.dedupJournalFile = nil
	}
	return errors.Join(errs...)
}

// safeName rejects ids that would escape their directory.
func safeName(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return "", fmt.Errorf("invalid %s id %q", kind, id)
	}
	return id, nil
}

func (s *fileStore) ownerPath(id string) (string, error) {
	name, err := safeName("owner", id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, "owners", name+".json"), nil
}

func (s *fileStore) ListOwners(ctx context.Context) ([]string, error) {
	_ = ctx
	entries, err := os.ReadDir(filepath.Join(s.dir, "owners"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *fileStore) LoadOwner(ctx context.Context, id string) (*care.Owner, error) {
	_ = ctx
	path, err := s.ownerPath(id)
	if err != nil {
		return nil, err
	}
	var o care.Owner
	if err := readJSON(path, &o); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("owner %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("owner %q: %w", id, err)
	}
	return &o, nil
}

func (s *fileStore) SaveOwner(ctx context.Context, o *care.Owner) error {
	_ = ctx
	if err := checkOwner(o); err != nil {
		return err
	}
	path, err := s.ownerPath(o.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(path, o)
}

func (s *fileStore) DeleteOwner(ctx context.Context, id string) error {
	_ = ctx
	path, err := s.ownerPath(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("owner %q: %w", id, ErrNotFound)
		}
		return err
	}
	return os.RemoveAll(filepath.Join(s.dir, "plans", strings.TrimSpace(id)))
}

func (s *fileStore) planPath(ownerID string, day care.Date) (string, error) {
	name, err := safeName("owner", ownerID)
	if err != nil {
		return "", err
	}
	if day.IsZero() {
		return "", errors.New("plan date is required")
	}
	return filepath.Join(s.dir, "plans", name, day.String()+".json"), nil
}

func (s *fileStore) SavePlan(ctx context.Context, p PlanRecord) error {
	_ = ctx
	path, err := s.planPath(p.OwnerID, p.Date)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSONAtomic(path, p)
}

func (s *fileStore) LoadPlan(ctx context.Context, ownerID string, day care.Date) (*PlanRecord, error) {
	_ = ctx
	path, err := s.planPath(ownerID, day)
	if err != nil {
		return nil, err
	}
	var p PlanRecord
	if err := readJSON(path, &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("plan %s/%s: %w", ownerID, day, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ms := until.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupJournalFile == nil {
		return errors.New("dedup journal closed")
	}
	s.dedup[key] = ms
	if err := json.NewEncoder(s.dedupJournalFile).Encode(dedupRecord{Key: key, Until: ms}); err != nil {
		return err
	}
	s.dedupWrites++
	if s.dedupWrites%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("dedup compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.dedup[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) compactLocked() error {
	pruneExpiredDedup(s.dedup, time.Now())
	if err := writeJSONAtomic(s.dedupSnapshotPath, s.dedup); err != nil {
		return err
	}
	if err := s.dedupJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err := s.dedupJournalFile.Seek(0, 2)
	return err
}

func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func loadDedupSnapshot(path string, out map[string]int64) error {
	var m map[string]int64
	if err := readJSON(path, &m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayDedupJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r dedupRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Key == "" {
			continue
		}
		out[r.Key] = r.Until
	}
	return sc.Err()
}

func pruneExpiredDedup(m map[string]int64, now time.Time) {
	cut := now.UnixMilli()
	for k, v := range m {
		if v < cut {
			delete(m, k)
		}
	}
}
