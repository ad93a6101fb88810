package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "ferroci/internal/errors"
	"ferroci/internal/plot"
	"ferroci/internal/services"
	"ferroci/pkg/contracts/domain"
)

// MockAnalysisService is a mock implementation of AnalysisServiceInterface
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Drop(ctx context.Context, paths []string) (*domain.DropReport, error) {
	args := m.Called(paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DropReport), args.Error(1)
}

func (m *MockAnalysisService) Upload(ctx context.Context, dir string, files []services.UploadedFile) (*domain.DropReport, error) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	args := m.Called(dir, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DropReport), args.Error(1)
}

func (m *MockAnalysisService) Session(ctx context.Context, dir string) (domain.SessionInfo, error) {
	args := m.Called(dir)
	return args.Get(0).(domain.SessionInfo), args.Error(1)
}

func (m *MockAnalysisService) Sessions() []domain.SessionInfo {
	args := m.Called()
	return args.Get(0).([]domain.SessionInfo)
}

func (m *MockAnalysisService) Results(ctx context.Context, dir string) (domain.ResultsView, error) {
	args := m.Called(dir)
	return args.Get(0).(domain.ResultsView), args.Error(1)
}

func (m *MockAnalysisService) Plot(ctx context.Context, dir string, format plot.Format, w io.Writer) error {
	args := m.Called(dir, format)
	if body, ok := args.Get(0).(string); ok && body != "" {
		_, _ = io.WriteString(w, body)
	}
	return args.Error(1)
}

func (m *MockAnalysisService) Metrics() []domain.MetricInfo {
	args := m.Called()
	return args.Get(0).([]domain.MetricInfo)
}

func newTestAnalysisHandler(svc *MockAnalysisService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnalysisHandler(svc, 1<<20, logger).Routes()
}

func TestAnalysisHandler_Drop(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "ref.csv")

	tests := []struct {
		name           string
		body           string
		setupMock      func(m *MockAnalysisService)
		expectedStatus int
	}{
		{
			name: "analyzes dropped files",
			body: `{"paths":["` + filepath.ToSlash(abs) + `"]}`,
			setupMock: func(m *MockAnalysisService) {
				m.On("Drop", mock.Anything).Return(&domain.DropReport{ID: "drop-1"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "rejects malformed json",
			body:           `{"paths":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rejects empty path list",
			body:           `{"paths":[]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rejects relative paths",
			body:           `{"paths":["data/ref.csv"]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "busy processor returns conflict",
			body: `{"paths":["` + filepath.ToSlash(abs) + `"]}`,
			setupMock: func(m *MockAnalysisService) {
				m.On("Drop", mock.Anything).Return(nil, apierrors.ErrBusy)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "persistence failure returns server error",
			body: `{"paths":["` + filepath.ToSlash(abs) + `"]}`,
			setupMock: func(m *MockAnalysisService) {
				m.On("Drop", mock.Anything).Return(&domain.DropReport{},
					apierrors.NewPersistenceError("write results", "data.csv", io.ErrShortWrite))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAnalysisService)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			req := httptest.NewRequest(http.MethodPost, "/drops", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			newTestAnalysisHandler(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestAnalysisHandler_DropReturnsReport(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "ref.csv")
	svc := new(MockAnalysisService)
	svc.On("Drop", []string{abs}).Return(&domain.DropReport{
		ID: "drop-7",
		Outcomes: []domain.FileOutcome{
			{Path: abs, Kind: domain.OutcomeReference},
		},
	}, nil)

	body, err := json.Marshal(DropRequest{Paths: []string{abs}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/drops", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestAnalysisHandler(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.DropReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "drop-7", got.ID)
	require.Len(t, got.Outcomes, 1)
	assert.Equal(t, domain.OutcomeReference, got.Outcomes[0].Kind)
}

func TestAnalysisHandler_DropContentType(t *testing.T) {
	body := `{"paths":["/data/ref.csv"]}`

	tests := []struct {
		name        string
		contentType string
		status      int
		problemType string
	}{
		{"missing", "", http.StatusBadRequest, apierrors.TypeValidation},
		{"form post", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType, apierrors.TypeMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAnalysisService)
			req := httptest.NewRequest(http.MethodPost, "/drops", strings.NewReader(body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()

			newTestAnalysisHandler(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, apierrors.ContentTypeProblem, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.problemType)
			svc.AssertNotCalled(t, "Drop", mock.Anything)
		})
	}
}

func TestAnalysisHandler_Upload(t *testing.T) {
	dir := t.TempDir()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("dir", dir))
	for _, name := range []string{"ref.csv", "s1.csv"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("Potential/V,Current/A\n0,1\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	svc := new(MockAnalysisService)
	svc.On("Upload", dir, []string{"ref.csv", "s1.csv"}).Return(&domain.DropReport{ID: "up-1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	newTestAnalysisHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestAnalysisHandler_UploadWithoutFiles(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("dir", t.TempDir()))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	svc := new(MockAnalysisService)
	newTestAnalysisHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestAnalysisHandler_Results(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("Results", "/data/run1").Return(domain.ResultsView{
		Directory: "/data/run1",
		Header:    []string{domain.ColumnFilename, domain.ColumnTimestamp, "Sum_Abs_Difference"},
		Rows:      [][]string{{"s1.csv", "2026-01-02T03:04:05Z", "3"}},
	}, nil)
	svc.On("Results", "/missing").Return(domain.ResultsView{}, apierrors.NotFoundError("directory"))

	handler := newTestAnalysisHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results?dir=/data/run1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view domain.ResultsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Sum_Abs_Difference", view.Header[2])
	assert.Equal(t, "s1.csv", view.Rows[0][0])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results?dir=/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)
}

func TestAnalysisHandler_Sessions(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("Sessions").Return([]domain.SessionInfo{{Directory: "/data/run1"}})
	svc.On("Session", "/data/run1").Return(domain.SessionInfo{Directory: "/data/run1"}, nil)

	handler := newTestAnalysisHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session?dir=/data/run1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one domain.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "/data/run1", one.Directory)
}

func TestAnalysisHandler_Plot(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("Plot", "/data/run1", plot.FormatSVG).Return("<svg></svg>", nil)
	svc.On("Plot", "/data/empty", plot.FormatPNG).Return("", plot.ErrNothingToPlot)

	handler := newTestAnalysisHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plot.svg?dir=/data/run1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plot.FormatSVG.ContentType(), rec.Header().Get("Content-Type"))
	assert.Equal(t, "<svg></svg>", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plot.png?dir=/data/empty", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plot.gif?dir=/data/run1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertNumberOfCalls(t, "Plot", 2)
}

func TestAnalysisHandler_Metrics(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("Metrics").Return([]domain.MetricInfo{
		{Name: "Sum_Abs_Difference"},
		{Name: "Min_Max_Range"},
	})

	rec := httptest.NewRecorder()
	newTestAnalysisHandler(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.MetricInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Min_Max_Range", got[1].Name)
}
