package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/groster/groster/internal/model"
)

// CSVStore keeps every table in a CSV file under one data directory:
//
//	<dir>/<region>-<realm>-<guild>-<table>.csv
//	<dir>/classes.csv, <dir>/races.csv
//	<dir>/<region>/<realm>/<name>/<kind>.json
//	<dir>/runs.jsonl
type CSVStore struct {
	dir string
	mu  sync.Mutex // guards runs.jsonl
}

// NewCSV returns a store rooted at dir.
func NewCSV(dir string) (*CSVStore, error) {
	if dir == "" {
		return nil, eris.New("csv: data directory is required")
	}
	return &CSVStore{dir: dir}, nil
}

func (s *CSVStore) Migrate(_ context.Context) error {
	return eris.Wrap(os.MkdirAll(s.dir, 0o755), "csv: create data dir")
}

func (s *CSVStore) Close() error { return nil }

// TablePath returns the file holding table for key.
func (s *CSVStore) TablePath(key model.GuildKey, table Table) string {
	if table.Global() {
		return filepath.Join(s.dir, string(table)+".csv")
	}
	return filepath.Join(s.dir, key.Prefix()+"-"+string(table)+".csv")
}

func (s *CSVStore) SaveTable(_ context.Context, key model.GuildKey, table Table, rows any) error {
	if err := checkRows(rows); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	elem := reflect.TypeOf(rows).Elem()
	if err := enc.EncodeHeader(reflect.Zero(elem).Interface()); err != nil {
		return eris.Wrapf(err, "csv: encode %s header", table)
	}
	if reflect.ValueOf(rows).Len() > 0 {
		if err := enc.Encode(rows); err != nil {
			return eris.Wrapf(err, "csv: encode %s", table)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "csv: flush %s", table)
	}

	return writeFileAtomic(s.TablePath(key, table), buf.Bytes())
}

func (s *CSVStore) LoadTable(_ context.Context, key model.GuildKey, table Table, out any) (time.Time, error) {
	path := s.TablePath(key, table)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, eris.Wrapf(ErrNotFound, "csv: table %s for %s", table, key)
	}
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "csv: read %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "csv: stat %s", path)
	}

	if err := csvutil.Unmarshal(data, out); err != nil {
		return time.Time{}, eris.Wrapf(err, "csv: decode %s", path)
	}
	return info.ModTime().UTC(), nil
}

func (s *CSVStore) payloadPath(ref PayloadRef) string {
	ref = ref.normalized()
	return filepath.Join(s.dir, ref.Region, ref.Realm, ref.Name, string(ref.Kind)+".json")
}

func (s *CSVStore) SavePayload(_ context.Context, ref PayloadRef, data []byte) error {
	return writeFileAtomic(s.payloadPath(ref), data)
}

func (s *CSVStore) LoadPayload(_ context.Context, ref PayloadRef) ([]byte, error) {
	data, err := os.ReadFile(s.payloadPath(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "csv: payload %s for %s", ref.Kind, ref.Name)
	}
	return data, eris.Wrap(err, "csv: read payload")
}

func (s *CSVStore) CreateRun(_ context.Context, key model.GuildKey) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.New().String(),
		Guild:     key,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.appendRun(run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *CSVStore) FinishRun(ctx context.Context, runID string, stats *model.RunStats, runErr error) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	run.Status, run.Error = finishState(runErr)
	run.Stats = stats
	run.UpdatedAt = time.Now().UTC()
	return s.appendRun(run)
}

func (s *CSVStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	runs, err := s.readRuns()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == runID {
			return &runs[i], nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "csv: run %s", runID)
}

func (s *CSVStore) ListRuns(_ context.Context, filter RunFilter) ([]model.Run, error) {
	runs, err := s.readRuns()
	if err != nil {
		return nil, err
	}
	var out []model.Run
	for _, r := range runs {
		if filter.match(r) {
			out = append(out, r)
		}
	}
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (s *CSVStore) runsPath() string {
	return filepath.Join(s.dir, "runs.jsonl")
}

func (s *CSVStore) appendRun(run *model.Run) error {
	line, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "csv: marshal run")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrap(err, "csv: create data dir")
	}
	f, err := os.OpenFile(s.runsPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "csv: open runs log")
	}
	defer f.Close() //nolint:errcheck
	_, err = f.Write(append(line, '\n'))
	return eris.Wrap(err, "csv: append run")
}

// readRuns replays runs.jsonl, keeping the latest record of every run,
// newest run first.
func (s *CSVStore) readRuns() ([]model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.runsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: open runs log")
	}
	defer f.Close() //nolint:errcheck

	latest := make(map[string]int)
	var runs []model.Run
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r model.Run
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, eris.Wrap(err, "csv: decode run")
		}
		if i, ok := latest[r.ID]; ok {
			runs[i] = r
			continue
		}
		latest[r.ID] = len(runs)
		runs = append(runs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "csv: scan runs log")
	}
	slices.Reverse(runs)
	return runs, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "csv: create dir for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "csv: write %s", tmp)
	}
	return eris.Wrapf(os.Rename(tmp, path), "csv: rename %s", tmp)
}
