package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	logpkg "github.com/kailas-cloud/reqcheck/internal/logger"
	healthuc "github.com/kailas-cloud/reqcheck/internal/usecase/health"
	"github.com/kailas-cloud/reqcheck/internal/usecase/runner"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest        = "bad_request"
	CodeValidationFailed  = "validation_failed"
	CodeInvalidDocument   = "invalid_document"
	CodeDocumentTooLarge  = "document_too_large"
	CodeUnsupportedFormat = "unsupported_format"
	CodeSessionNotFound   = "session_not_found"
	CodeUnauthorized      = "unauthorized"
	CodeShuttingDown      = "shutting_down"
	CodeInternalError     = "internal_error"
)

// Multipart form fields carrying the two documents.
const (
	FieldRequirements   = "requirements"
	FieldImplementation = "implementation"
)

// multipartOverhead covers form boundaries and headers around the two files.
const multipartOverhead = 1 << 20

// Submitter starts comparison runs.
type Submitter interface {
	Submit(ctx context.Context, reqDoc, implDoc domain.Document) (domain.Session, error)
}

// SessionReader reads run records.
type SessionReader interface {
	Get(ctx context.Context, id string) (domain.Session, error)
	Stats(ctx context.Context) (domain.SessionStats, error)
}

// Explainer produces a plain-language explanation of a requirement.
type Explainer interface {
	Explain(ctx context.Context, text string) string
}

// DocumentLoader turns uploaded files into documents.
type DocumentLoader interface {
	LoadReader(name string, r io.Reader) (domain.Document, error)
	MaxBytes() int64
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the comparison API.
type Server struct {
	runs          Submitter
	sessions      SessionReader
	explainer     Explainer
	loader        DocumentLoader
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	runs Submitter,
	sessions SessionReader,
	explainer Explainer,
	loader DocumentLoader,
	health HealthReporter,
	logger *zap.Logger,
) *Server {
	s := &Server{
		runs:      runs,
		sessions:  sessions,
		explainer: explainer,
		loader:    loader,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge, CodeDocumentTooLarge),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, CodeInvalidDocument),
		sentinelHandler(runner.ErrClosed, http.StatusServiceUnavailable, CodeShuttingDown),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/comparisons", s.CreateComparison)
		r.Get("/comparisons/{id}", s.GetComparison)
		r.Post("/explain", s.Explain)
		r.Get("/stats", s.Stats)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

type createComparisonRequest struct {
	Requirements   string `json:"requirements"`
	Implementation string `json:"implementation"`
}

type createComparisonResponse struct {
	SessionID string          `json:"session_id"`
	Status    domain.RunState `json:"status"`
}

// CreateComparison handles POST /v1/comparisons. It accepts either a JSON body
// with both texts or a multipart form with two files.
func (s *Server) CreateComparison(w http.ResponseWriter, r *http.Request) {
	var (
		reqDoc, implDoc domain.Document
		err             error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		reqDoc, implDoc, err = s.documentsFromForm(w, r)
	} else {
		reqDoc, implDoc, err = s.documentsFromJSON(w, r)
	}
	if err != nil {
		s.handleRequestError(w, err)
		return
	}

	for _, d := range []domain.Document{reqDoc, implDoc} {
		if d.IsBlank() {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, d.Name+" document is empty")
			return
		}
	}

	sess, err := s.runs.Submit(r.Context(), reqDoc, implDoc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	logpkg.FromContext(r.Context()).Info("comparison submitted",
		zap.String("session_id", sess.ID),
		zap.Int("requirements_bytes", len(reqDoc.RawText)),
		zap.Int("implementation_bytes", len(implDoc.RawText)),
	)
	w.Header().Set("Location", "/v1/comparisons/"+sess.ID)
	writeJSON(w, http.StatusAccepted, createComparisonResponse{SessionID: sess.ID, Status: sess.Status})
}

func (s *Server) documentsFromJSON(w http.ResponseWriter, r *http.Request) (domain.Document, domain.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.loader.MaxBytes()+multipartOverhead)

	var req createComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.Document{}, domain.Document{}, fmt.Errorf("decode body: %w", err)
	}
	for _, text := range []string{req.Requirements, req.Implementation} {
		if int64(len(text)) > s.loader.MaxBytes() {
			return domain.Document{}, domain.Document{}, fmt.Errorf("text of %d bytes: %w",
				len(text), domain.ErrDocumentTooLarge)
		}
	}
	return domain.NewDocument(FieldRequirements, req.Requirements),
		domain.NewDocument(FieldImplementation, req.Implementation), nil
}

func (s *Server) documentsFromForm(w http.ResponseWriter, r *http.Request) (domain.Document, domain.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.loader.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(s.loader.MaxBytes()); err != nil {
		return domain.Document{}, domain.Document{}, fmt.Errorf("parse form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	reqDoc, err := s.formFile(r, FieldRequirements)
	if err != nil {
		return domain.Document{}, domain.Document{}, err
	}
	implDoc, err := s.formFile(r, FieldImplementation)
	if err != nil {
		return domain.Document{}, domain.Document{}, err
	}
	return reqDoc, implDoc, nil
}

func (s *Server) formFile(r *http.Request, field string) (domain.Document, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: missing file %q", errMissingField, field)
	}
	defer f.Close()

	doc, err := s.loader.LoadReader(hdr.Filename, f)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load %s: %w", field, err)
	}
	return doc, nil
}

var errMissingField = errors.New("missing field")

// handleRequestError maps body decoding failures before falling back to domain errors.
func (s *Server) handleRequestError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, CodeDocumentTooLarge, "request body too large")
	case errors.Is(err, errMissingField):
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
	case errors.Is(err, domain.ErrDocumentTooLarge),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidDocument):
		s.handleDomainError(w, err)
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
	}
}

type sessionResponse struct {
	SessionID         string            `json:"session_id"`
	Status            domain.RunState   `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	ProcessingTime    float64           `json:"processing_time"`
	RequirementsCount int               `json:"requirements_count"`
	Result            []verdictResponse `json:"result,omitempty"`
	Report            *domain.Report    `json:"report,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

type verdictResponse struct {
	Requirement string             `json:"requirement"`
	Status      domain.Status      `json:"status"`
	Criticality domain.Criticality `json:"criticality"`
	Analysis    string             `json:"analysis"`
}

// GetComparison handles GET /v1/comparisons/{id}.
func (s *Server) GetComparison(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

func sessionToResponse(sess domain.Session) sessionResponse {
	resp := sessionResponse{
		SessionID:         sess.ID,
		Status:            sess.Status,
		CreatedAt:         sess.CreatedAt.UTC(),
		ProcessingTime:    sess.ProcessingTime.Seconds(),
		RequirementsCount: sess.RequirementsCount,
		Report:            sess.Report,
		ErrorMessage:      sess.ErrorMessage,
	}
	if sess.CompletedAt != nil {
		t := sess.CompletedAt.UTC()
		resp.CompletedAt = &t
	}
	if len(sess.Result) > 0 {
		resp.Result = make([]verdictResponse, len(sess.Result))
		for i, v := range sess.Result {
			resp.Result[i] = verdictResponse{
				Requirement: v.Requirement,
				Status:      v.Status.Status,
				Criticality: v.Status.Criticality,
				Analysis:    v.Analysis,
			}
		}
	}
	return resp
}

type explainRequest struct {
	Text string `json:"text"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// Explain handles POST /v1/explain.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if domain.NormalizeText(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "text is required")
		return
	}

	writeJSON(w, http.StatusOK, explainResponse{Explanation: s.explainer.Explain(r.Context(), req.Text)})
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sessions.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type healthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: report.Status, Checks: report.Checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrDocumentTooLarge,
		domain.ErrUnsupportedFormat,
		domain.ErrInvalidDocument,
		runner.ErrClosed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
