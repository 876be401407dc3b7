// Package ingest turns policy sources into an index: it loads or crawls
// records, renders them into documents and rebuilds the vector index.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/normalize"
)

// sourceRecord is the on-disk record shape. Files may hold a normalized
// record, a raw section tree, or both; plcyBizId is the legacy id key.
type sourceRecord struct {
	model.PolicyRecord
	LegacyID string          `json:"plcyBizId"`
	Sections []model.Section `json:"sections"`
}

func (s sourceRecord) record() model.PolicyRecord {
	if len(s.Sections) > 0 {
		return normalize.Normalize(model.SourcePage{
			PolicyID: s.id(),
			Title:    s.Title,
			PageURL:  s.PageURL,
			Tags:     s.Tags,
			Sections: s.Sections,
		})
	}

	rec := s.PolicyRecord
	rec.PolicyID = normalize.Clean(s.id())
	rec.Title = normalize.Clean(rec.Title)
	rec.Tags = normalize.CleanTags(rec.Tags)
	if rec.Title == "" {
		rec.Title = normalize.UntitledPolicy
	}
	if rec.PolicyID == "" {
		rec.PolicyID = normalize.DerivedID(rec.PageURL, rec.Title)
	}
	return rec
}

func (s sourceRecord) id() string {
	if s.PolicyID != "" {
		return s.PolicyID
	}
	return s.LegacyID
}

// LoadRecords reads every *.json file in dir, in name order. A file holds
// one record or an array of records. Files that cannot be read or decoded
// are logged and skipped.
func LoadRecords(dir string, logger *zap.Logger) ([]model.PolicyRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	sort.Strings(paths)

	var records []model.PolicyRecord
	for _, path := range paths {
		recs, err := loadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable record file",
				zap.String("file", path),
				zap.Error(err))
			continue
		}
		records = append(records, recs...)
	}

	logger.Info("records loaded",
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Int("records", len(records)))

	return records, nil
}

func loadFile(path string) ([]model.PolicyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	data = bytes.TrimSpace(data)
	var sources []sourceRecord
	if strings.HasPrefix(string(data), "[") {
		if err := json.Unmarshal(data, &sources); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
	} else {
		var one sourceRecord
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		sources = []sourceRecord{one}
	}

	records := make([]model.PolicyRecord, 0, len(sources))
	for _, s := range sources {
		records = append(records, s.record())
	}
	return records, nil
}

// WriteRecord stores rec as <dir>/<policy_id>.json
func WriteRecord(dir string, rec model.PolicyRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	path := filepath.Join(dir, fileName(rec.PolicyID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return path, nil
}

// fileName keeps ids from escaping the output directory
func fileName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id) + ".json"
}
