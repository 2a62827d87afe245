package tracking

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the durable record of completed downloads and expected file
// sizes. The ledger is an append-only text file of filenames; sizes live in
// a JSON document next to it. Writes are serialized through a mutex so
// concurrent workers cannot interleave appends.
type Store struct {
	ledgerPath string
	sizesPath  string
	mu         sync.Mutex
}

func NewStore(ledgerPath, sizesPath string) *Store {
	return &Store{ledgerPath: ledgerPath, sizesPath: sizesPath}
}

// Completed returns the set of filenames already marked downloaded. A
// missing ledger means nothing is completed, not an error.
func (s *Store) Completed() (map[string]struct{}, error) {
	f, err := os.Open(s.ledgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("error opening ledger: %v", err)
	}
	defer f.Close()
	completed := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		completed[name] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ledger: %v", err)
	}
	return completed, nil
}

// MarkCompleted appends a filename to the ledger. The format is append-only
// and newline-prefixed; duplicate appends are harmless because readers
// treat the ledger as a set.
func (s *Store) MarkCompleted(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.ledgerPath), 0755); err != nil {
		return fmt.Errorf("error creating tracking directory: %v", err)
	}
	f, err := os.OpenFile(s.ledgerPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("error opening ledger for append: %v", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "\n%s", filename); err != nil {
		return fmt.Errorf("error appending to ledger: %v", err)
	}
	return nil
}

// ExpectedSize looks up the recorded size for a filename. Absence just
// means no stall-detection baseline exists for that file.
func (s *Store) ExpectedSize(filename string) (int64, bool) {
	sizes, err := s.readSizes()
	if err != nil {
		return 0, false
	}
	size, ok := sizes[filename]
	return size, ok
}

// RecordSize persists a probed size so later attempts have a baseline.
func (s *Store) RecordSize(filename string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes, err := s.readSizes()
	if err != nil {
		return err
	}
	if sizes == nil {
		sizes = make(map[string]int64)
	}
	sizes[filename] = size
	if err := os.MkdirAll(filepath.Dir(s.sizesPath), 0755); err != nil {
		return fmt.Errorf("error creating tracking directory: %v", err)
	}
	data, err := json.MarshalIndent(sizes, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding sizes: %v", err)
	}
	if err := os.WriteFile(s.sizesPath, data, 0644); err != nil {
		return fmt.Errorf("error writing sizes: %v", err)
	}
	return nil
}

// IsComplete reports whether the file on disk matches its expected size.
func (s *Store) IsComplete(filename, downloadDir string) bool {
	expected, ok := s.ExpectedSize(filename)
	if !ok {
		return false
	}
	info, err := os.Stat(filepath.Join(downloadDir, filename))
	if err != nil {
		return false
	}
	return info.Size() == expected
}

func (s *Store) readSizes() (map[string]int64, error) {
	data, err := os.ReadFile(s.sizesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading sizes: %v", err)
	}
	var sizes map[string]int64
	if err := json.Unmarshal(data, &sizes); err != nil {
		return nil, fmt.Errorf("error parsing sizes: %v", err)
	}
	return sizes, nil
}
