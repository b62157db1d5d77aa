package store

import (
	"fmt"
	"time"

	"github.com/shabonaa/exambuilder/internal/model"
)

// ExportResults builds an export of the shared analytics namespace,
// optionally filtered to one exam id.
func (s *Store) ExportResults(examID string) (model.ResultsExport, error) {
	appID, err := s.AppID()
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("read app id: %w", err)
	}
	all, err := s.ListAllResults()
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}

	results := all
	if examID != "" {
		results = results[:0:0]
		for _, r := range all {
			if r.ExamID == examID {
				results = append(results, r)
			}
		}
	}

	return model.ResultsExport{
		AppID:      appID,
		ExamID:     examID,
		ExportedAt: time.Now().UnixMilli(),
		Count:      len(results),
		Results:    results,
	}, nil
}
