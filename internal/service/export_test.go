package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flexprice/clockwork/internal/integration/s3"
	"github.com/flexprice/clockwork/internal/testutil"
	"github.com/flexprice/clockwork/internal/types"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) UploadJSON(ctx context.Context, runID, name string, data []byte) (*s3.UploadResult, error) {
	args := m.Called(runID, name, data)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(*s3.UploadResult), nil
}

func (m *mockUploader) UploadCSV(ctx context.Context, runID, name string, data []byte) (*s3.UploadResult, error) {
	args := m.Called(runID, name, data)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return args.Get(0).(*s3.UploadResult), nil
}

type ExportServiceSuite struct {
	testutil.BaseServiceTestSuite
	dir     string
	records []*EntityResult
}

func TestExportService(t *testing.T) {
	suite.Run(t, new(ExportServiceSuite))
}

func (s *ExportServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.dir = s.T().TempDir()
	s.GetConfig().Export.JSONPath = filepath.Join(s.dir, "generated_customers.json")
	s.GetConfig().Export.CSVPath = filepath.Join(s.dir, "out", "generated_customers.csv")
	s.records = []*EntityResult{
		{
			Index:              1,
			Email:              "active1@actual.com",
			EntityID:           "cus_1",
			Trajectory:         types.TrajectorySteadyActive,
			State:              types.TrajectoryStateDone,
			States:             []types.TrajectoryState{types.TrajectoryStateNew, types.TrajectoryStateDone},
			SubscriptionStatus: types.SubscriptionStatusActive,
			InvoicesPaid:       4,
		},
		{
			Index:      2,
			Email:      "cancel2@actual.com",
			Trajectory: types.TrajectoryCancelAfter,
			State:      types.TrajectoryStateAborted,
			Error:      "advance failed",
		},
	}
}

func (s *ExportServiceSuite) TestWritesJSONAndCSV() {
	svc := NewExportService(testParams(&s.BaseServiceTestSuite), nil)

	result, err := svc.Write(s.GetContext(), "run_1", s.records)
	s.Require().NoError(err)
	s.Empty(result.Uploads)

	raw, err := os.ReadFile(result.JSONPath)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(raw), "[\n  {"), "json is indented")

	var decoded []map[string]any
	s.Require().NoError(json.Unmarshal(raw, &decoded))
	s.Require().Len(decoded, 2)
	s.Equal("cus_1", decoded[0]["id"])
	s.Equal("steady_active", decoded[0]["trajectory"])
	s.NotContains(decoded[0], "cancel_after")

	csvFile, err := os.Open(result.CSVPath)
	s.Require().NoError(err)
	defer csvFile.Close()

	var rows []*EntityResult
	s.Require().NoError(gocsv.UnmarshalFile(csvFile, &rows))
	s.Require().Len(rows, 2)
	s.Equal("cancel2@actual.com", rows[1].Email)
	s.Equal(types.TrajectoryStateAborted, rows[1].State)
	s.Nil(rows[0].States)
}

func (s *ExportServiceSuite) TestUploadsBothArtifacts() {
	uploader := &mockUploader{}
	uploader.On("UploadJSON", "run_2", "entities", mock.Anything).
		Return(&s3.UploadResult{Key: "run_2/entities.json"}, nil)
	uploader.On("UploadCSV", "run_2", "entities", mock.MatchedBy(func(data []byte) bool {
		return strings.HasPrefix(string(data), "index,email,customer_id")
	})).Return(&s3.UploadResult{Key: "run_2/entities.csv"}, nil)

	s.GetConfig().Export.CSVPath = ""
	svc := NewExportService(testParams(&s.BaseServiceTestSuite), uploader)

	result, err := svc.Write(s.GetContext(), "run_2", s.records)
	s.Require().NoError(err)
	s.Empty(result.CSVPath)
	s.Require().Len(result.Uploads, 2)
	uploader.AssertExpectations(s.T())
}

func (s *ExportServiceSuite) TestUploadFailureIsReturned() {
	uploader := &mockUploader{}
	uploader.On("UploadJSON", "run_3", "entities", mock.Anything).Return(nil, assert.AnError)

	svc := NewExportService(testParams(&s.BaseServiceTestSuite), uploader)

	result, err := svc.Write(s.GetContext(), "run_3", s.records)
	s.Require().ErrorIs(err, assert.AnError)
	s.NotEmpty(result.JSONPath)
	uploader.AssertNotCalled(s.T(), "UploadCSV", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ExportServiceSuite) TestEmptyRunWritesEmptyList() {
	svc := NewExportService(testParams(&s.BaseServiceTestSuite), nil)

	result, err := svc.Write(s.GetContext(), "run_4", nil)
	s.Require().NoError(err)

	raw, err := os.ReadFile(result.JSONPath)
	s.Require().NoError(err)
	s.Equal("[]", string(raw))
}
