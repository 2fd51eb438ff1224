// Package audit implements the hash-chained, append-only JSON Lines
// audit log every tool-call attempt is recorded in.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// genesisHash seeds the chain when the log is empty or its tail cannot
// be parsed.
const genesisHash = "0000000000000000"

// Event is one tool-call attempt, before chaining fields are attached.
type Event struct {
	AgentID    string `json:"agent_id"`
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// entry is the full line written to disk: a stamped Event plus its
// position in the hash chain.
type entry struct {
	EntryID        string `json:"entry_id"`
	AgentID        string `json:"agent_id"`
	Tool           string `json:"tool"`
	Status         string `json:"status"`
	DurationMS     int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
	TimestampUTC   string `json:"ts_utc"`
	TimestampLocal string `json:"ts_local"`
	PrevHash       string `json:"prev_hash"`
	ChainHash      string `json:"chain_hash"`
}

// Log is a mutex-guarded, single-append-at-a-time JSON Lines audit
// log, grounded on the same append discipline as a plain key-value
// audit sink: O_APPEND|O_CREATE|O_WRONLY, 0o600, one flush per call.
type Log struct {
	path     string
	mu       sync.Mutex
	lastHash string
}

// Open loads the last chain_hash from path's final line (or seeds the
// genesis value if the file is absent or unparsable) and returns a Log
// ready to append.
func Open(path string) (*Log, error) {
	l := &Log{path: path, lastHash: genesisHash}
	last, err := readLastHash(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: could not read last chain hash from %s, starting from genesis: %v\n", path, err)
	} else if last != "" {
		l.lastHash = last
	}
	return l, nil
}

func readLastHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	var lastLine string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lastLine = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if lastLine == "" {
		return "", nil
	}
	var tail struct {
		ChainHash string `json:"chain_hash"`
	}
	if err := json.Unmarshal([]byte(lastLine), &tail); err != nil {
		return "", fmt.Errorf("parsing last line: %w", err)
	}
	if tail.ChainHash == "" {
		return "", fmt.Errorf("last line has no chain_hash")
	}
	return tail.ChainHash, nil
}

// Log stamps event, chains it to the previous entry, and appends it as
// one line. Failures are swallowed after being surfaced to stderr: a
// logging fault must never abort the tool call it describes.
func (l *Log) Log(event Event) {
	if l == nil || l.path == "" {
		return
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	base := entry{
		EntryID:        uuid.New().String(),
		AgentID:        event.AgentID,
		Tool:           event.Tool,
		Status:         event.Status,
		DurationMS:     event.DurationMS,
		Error:          event.Error,
		TimestampUTC:   now.UTC().Format(time.RFC3339Nano),
		TimestampLocal: now.Local().Format(time.RFC3339Nano),
		PrevHash:       l.lastHash,
	}
	baseData, err := canonicalJSON(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: serializing entry failed: %v\n", err)
		return
	}
	sum := sha256.Sum256(append([]byte(l.lastHash), baseData...))
	chainHash := hex.EncodeToString(sum[:])[:16]
	base.ChainHash = chainHash

	data, err := json.Marshal(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: serializing entry failed: %v\n", err)
		return
	}
	data = append(data, '\n')

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "audit: creating dir failed: %v\n", err)
			return
		}
	}
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: opening log failed: %v\n", err)
		return
	}
	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil {
		fmt.Fprintf(os.Stderr, "audit: writing entry failed: %v\n", writeErr)
		return
	}
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "audit: closing log failed: %v\n", closeErr)
		return
	}
	l.lastHash = chainHash
}

// canonicalJSON serializes v with stable key order (Go struct field
// order is already stable, so a plain Marshal suffices here) before it
// enters the hash. prev_hash is fed into the digest separately by the
// caller, so it is excluded here along with chain_hash to avoid
// double-counting it.
func canonicalJSON(v entry) ([]byte, error) {
	v.PrevHash = ""
	v.ChainHash = ""
	return json.Marshal(v)
}
