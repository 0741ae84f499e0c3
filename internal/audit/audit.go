// Package audit persists a durable, locked-append record of every
// winning puzzle solve to disk, rotating to a timestamped archive
// file every 1000 records. It exists purely as an incidental on-disk
// artifact — it is not puzzle state and is never read back by the
// running server except for the admin plane's log viewer.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"

	herrors "hashpass/errors"
)

var log = slog.Disabled

// UseLogger sets the package-wide logger used by audit.
func UseLogger(logger slog.Logger) {
	log = logger
}

// rotateAt is the record count at which the log rotates to an
// archive file.
const rotateAt = 1000

// Record is one entry in the verify log, matching the audit record
// definition: timestamp, minted code, fingerprint, nonce, hash, seed,
// real IP, trace blob, difficulty at solve, solve time, new
// difficulty, and a short adjustment-reason string.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	InviteCode    string    `json:"invite_code"`
	VisitorID     string    `json:"visitor_id"`
	Nonce         uint64    `json:"nonce"`
	Hash          string    `json:"hash"`
	Seed          string    `json:"seed"`
	IP            string    `json:"ip"`
	TraceData     string    `json:"trace_data"`
	Difficulty    uint32    `json:"difficulty"`
	SolveTime     float64   `json:"solve_time_seconds"`
	NewDifficulty uint32    `json:"new_difficulty"`
	Reason        string    `json:"reason"`
}

// Log is a locked-append JSON-array log file, serialized in-process
// by mu and across processes by an OS file lock, matching the
// source's fcntl/msvcrt discipline.
type Log struct {
	mu   sync.Mutex
	dir  string
	path string
	lockPath string
}

// New opens (without yet creating) a Log rooted at dir, writing to
// dir/verify.json.
func New(dir string) *Log {
	return &Log{
		dir:      dir,
		path:     filepath.Join(dir, "verify.json"),
		lockPath: filepath.Join(dir, "verify.json.lock"),
	}
}

// Append writes rec to the log, rotating the existing file to a
// timestamped archive first if it has already reached rotateAt
// records. Append is safe to call concurrently; it serializes both
// in-process (via mu) and against any other process sharing the same
// directory (via an OS advisory lock on lockPath).
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	unlock, err := lockFile(l.lockPath)
	if err != nil {
		return err
	}
	defer unlock()

	records, err := l.readRecords()
	if err != nil {
		return err
	}

	if len(records) >= rotateAt {
		if err := l.rotate(records); err != nil {
			return err
		}
		records = nil
	}

	records = append(records, rec)
	return l.writeRecords(records)
}

func (l *Log) readRecords() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Log) rotate(records []Record) error {
	stamp := time.Now().UTC().Format("20060102_150405")
	archivePath := filepath.Join(l.dir, fmt.Sprintf("verify_%s.json", stamp))

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(archivePath, data, 0o644); err != nil {
		return err
	}
	log.Infof("audit: rotated %d records to %s", len(records), filepath.Base(archivePath))
	return nil
}

// ListFiles returns the main log filename followed by every archived
// filename, most recent first, for the admin plane's file picker.
func (l *Log) ListFiles() []string {
	files := []string{"verify.json"}

	matches, err := filepath.Glob(filepath.Join(l.dir, "verify_*.json"))
	if err != nil {
		return files
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return append(files, names...)
}

// ReadFile returns the records in one of the filenames ListFiles
// reports, rejecting any name that isn't an exact match (this is the
// only admission check; it is what prevents a path-traversal name
// such as "../config.json" from ever reaching the filesystem).
func (l *Log) ReadFile(name string) ([]Record, error) {
	allowed := false
	for _, f := range l.ListFiles() {
		if f == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, herrors.AdminError(herrors.OperatorError, "unknown log file")
	}

	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// writeRecords writes records to the main log file atomically: write
// to a temp file in the same directory, then rename over the target.
func (l *Log) writeRecords(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
