package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/integration/s3"
	"github.com/gocarina/gocsv"
)

const artifactName = "entities"

// ArtifactUploader stores run artifacts remotely. *s3.Uploader satisfies it.
type ArtifactUploader interface {
	UploadJSON(ctx context.Context, runID, name string, data []byte) (*s3.UploadResult, error)
	UploadCSV(ctx context.Context, runID, name string, data []byte) (*s3.UploadResult, error)
}

// ExportService writes the per-entity records of a run
type ExportService interface {
	Write(ctx context.Context, runID string, records []*EntityResult) (*ExportResult, error)
}

type ExportResult struct {
	JSONPath string
	CSVPath  string
	Uploads  []*s3.UploadResult
}

type exportService struct {
	ServiceParams
	uploader ArtifactUploader
}

// NewExportService builds the exporter. A nil uploader keeps artifacts local.
func NewExportService(params ServiceParams, uploader ArtifactUploader) ExportService {
	return &exportService{ServiceParams: params, uploader: uploader}
}

func (s *exportService) Write(ctx context.Context, runID string, records []*EntityResult) (*ExportResult, error) {
	if records == nil {
		records = []*EntityResult{}
	}
	result := &ExportResult{}

	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to encode entity records").
			Mark(ierr.ErrSystem)
	}
	if path := s.Config.Export.JSONPath; path != "" {
		if err := writeFile(path, jsonData); err != nil {
			return nil, err
		}
		result.JSONPath = path
	}

	var csvData []byte
	if path := s.Config.Export.CSVPath; path != "" || s.uploader != nil {
		csvData, err = gocsv.MarshalBytes(records)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("failed to encode entity records as csv").
				Mark(ierr.ErrSystem)
		}
		if path != "" {
			if err := writeFile(path, csvData); err != nil {
				return nil, err
			}
			result.CSVPath = path
		}
	}

	s.Logger.Infow("entity records written",
		"run_id", runID,
		"records", len(records),
		"json_path", result.JSONPath,
		"csv_path", result.CSVPath,
	)

	if s.uploader == nil {
		return result, nil
	}

	uploaded, err := s.uploader.UploadJSON(ctx, runID, artifactName, jsonData)
	if err != nil {
		return result, err
	}
	result.Uploads = append(result.Uploads, uploaded)

	uploaded, err = s.uploader.UploadCSV(ctx, runID, artifactName, csvData)
	if err != nil {
		return result, err
	}
	result.Uploads = append(result.Uploads, uploaded)
	return result, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ierr.WithError(err).
				WithHintf("could not create directory %s", dir).
				Mark(ierr.ErrSystem)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ierr.WithError(err).
			WithHintf("could not write %s", path).
			Mark(ierr.ErrSystem)
	}
	return nil
}
