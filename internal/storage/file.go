package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"expirywatch/internal/expiry"
	logx "expirywatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files (prefix derived from Path):
//   - <prefix>.items.json    (array of itemRecord, edited by the operator)
//   - <prefix>.accounts.json (array of accountRecord, directory order)
//   - <prefix>.runs.jsonl    (append-only run history)
//
// Items and accounts are re-read on every call so edits apply to the next run.
type fileStore struct {
	log logx.Logger

	itemsPath    string
	accountsPath string

	mu       sync.Mutex
	runsFile *os.File
}

type itemRecord struct {
	Owner                 string `json:"owner"`
	Name                  string `json:"name"`
	ExpiryDate            string `json:"expiry_date"`
	ReminderThresholdDays *int   `json:"reminder_threshold_days,omitempty"`
	Category              string `json:"category,omitempty"`
}

type accountRecord struct {
	Email string `json:"email"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	rf, err := os.OpenFile(prefix+".runs.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log.With(logx.String("comp", "storage.file")),
		itemsPath:    prefix + ".items.json",
		accountsPath: prefix + ".accounts.json",
		runsFile:     rf,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil
	}
	err := s.runsFile.Close()
	s.runsFile = nil
	return err
}

// readJSON decodes path into out. A missing file decodes as empty.
func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *fileStore) ListItems(ctx context.Context, ownerScope string) ([]expiry.Item, error) {
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return nil, ErrNoOwnerScope
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []itemRecord
	if err := readJSON(s.itemsPath, &recs); err != nil {
		return nil, err
	}
	out := make([]expiry.Item, 0, len(recs))
	for i, r := range recs {
		if r.Owner != ownerScope {
			continue
		}
		d, err := parseDate(r.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, r.Name, err)
		}
		out = append(out, expiry.Item{
			Name:                  r.Name,
			ExpiryDate:            d,
			ReminderThresholdDays: r.ReminderThresholdDays,
			CategoryName:          r.Category,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (s *fileStore) ListAccounts(ctx context.Context) ([]expiry.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []accountRecord
	if err := readJSON(s.accountsPath, &recs); err != nil {
		return nil, err
	}
	out := make([]expiry.Account, 0, len(recs))
	for _, r := range recs {
		out = append(out, expiry.Account{Email: r.Email})
	}
	return out, nil
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return errors.New("run history file closed")
	}
	return json.NewEncoder(s.runsFile).Encode(r)
}
