package utils

import (
	"bufio"
	"fmt"
	u "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkEntry is one item of a YAML work list.
type WorkEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FilenameFromURL extracts the last path segment of a URL or local path.
func FilenameFromURL(rawURL string) string {
	if IsURL(rawURL) {
		if parsed, err := u.Parse(rawURL); err == nil && parsed.Path != "" {
			return path.Base(parsed.Path)
		}
		parts := strings.Split(rawURL, "/")
		return parts[len(parts)-1]
	}
	return filepath.Base(rawURL)
}

// ReadWorkList loads download URLs from a plain text file (one per line,
// blank lines skipped) or, when the file has a .yaml/.yml extension, from a
// YAML list of link entries.
func ReadWorkList(filePath string) ([]string, error) {
	log := GetLogger("worklist")
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == ".yaml" || ext == ".yml" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("error reading YAML work list: %v", err)
		}
		var entries []WorkEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("error parsing YAML work list: %v", err)
		}
		var urls []string
		for i, entry := range entries {
			if entry.Link == "" {
				return nil, fmt.Errorf("missing link for entry %d", i+1)
			}
			urls = append(urls, entry.Link)
		}
		log.Debug().Int("count", len(urls)).Msg("Entries loaded from YAML work list")
		return urls, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading work list: %v", err)
	}
	defer f.Close()
	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning work list: %v", err)
	}
	log.Debug().Int("count", len(urls)).Msg("Entries loaded from work list")
	return urls, nil
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}
