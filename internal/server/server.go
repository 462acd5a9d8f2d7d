// Package server exposes act processing and reconciliation over HTTP.
package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

// DefaultMaxBodyBytes bounds request bodies; base64 file payloads for
// typical monthly exports stay well under this.
const DefaultMaxBodyBytes = 64 << 20

// Server handles the processing endpoints.
type Server struct {
	pipeline *Pipeline
	log      logger.Logger
	maxBody  int64
	mux      *http.ServeMux
}

// New builds a Server around a pipeline. maxBody <= 0 selects the
// default limit.
func New(pipeline *Pipeline, log logger.Logger, maxBody int64) *Server {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	s := &Server{
		pipeline: pipeline,
		log:      log.WithComponent("server"),
		maxBody:  maxBody,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/process", s.recover(s.handleProcess))
	s.mux.HandleFunc("/reconcile", s.recover(s.handleReconcile))
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the server with sane timeouts.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.log.WithField("addr", addr).Info("listening")
	return srv.ListenAndServe()
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, requestID string)

func (s *Server) recover(next handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		log := s.log.WithField("requestId", requestID)
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", rec).Error("request handler panicked")
				s.writeError(w, requestID, errors.InternalError("request handling", nil))
			}
		}()
		log.WithFields(logger.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Info("request received")
		next(w, r, requestID)
	}
}

type fileOptions struct {
	NumberMode string `json:"numberMode,omitempty"`
	// Semantic defaults to true when the key is omitted; filtering is
	// opt-out, matching the production processor.
	Semantic      *bool `json:"semantic,omitempty"`
	SemanticBatch int   `json:"semanticBatch,omitempty"`
	LLMExtract    bool  `json:"llmExtract,omitempty"`
	LLMMaxChars   int   `json:"llmMaxChars,omitempty"`
	LLMMaxRows    int   `json:"llmMaxRows,omitempty"`
	LLMHeaderRows int   `json:"llmHeaderRows,omitempty"`
	LLMCellMax    int   `json:"llmCellMax,omitempty"`
}

func (o *fileOptions) toProcessOptions() *ProcessOptions {
	semantic := true
	if o.Semantic != nil {
		semantic = *o.Semantic
	}
	return &ProcessOptions{
		NumberMode:    o.NumberMode,
		Semantic:      semantic,
		SemanticBatch: o.SemanticBatch,
		LLMExtract:    o.LLMExtract,
		LLMMaxChars:   o.LLMMaxChars,
		LLMMaxRows:    o.LLMMaxRows,
		LLMHeaderRows: o.LLMHeaderRows,
		LLMCellMax:    o.LLMCellMax,
	}
}

type processRequest struct {
	FileName   string      `json:"fileName"`
	FileBase64 string      `json:"fileBase64"`
	Options    fileOptions `json:"options"`
}

type processResponse struct {
	Rows []*models.CanonicalRecord `json:"rows"`
	Meta processMeta               `json:"meta"`
}

type processMeta struct {
	RowCount  int    `json:"rowCount"`
	RequestID string `json:"requestId"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, requestID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req processRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, requestID, err)
		return
	}
	data, err := decodeFile(req.FileName, req.FileBase64)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}

	records, err := s.pipeline.ProcessAct(r.Context(), req.FileName, data, req.Options.toProcessOptions())
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, processResponse{
		Rows: records,
		Meta: processMeta{RowCount: len(records), RequestID: requestID},
	})
}

type systemFilePayload struct {
	FileName   string `json:"fileName"`
	FileBase64 string `json:"fileBase64"`
}

type reconcileRequest struct {
	Supplier          string              `json:"supplier"`
	ActFileName       string              `json:"actFileName"`
	ActFileBase64     string              `json:"actFileBase64"`
	SystemFiles       []systemFilePayload `json:"systemFiles"`
	MappingFileBase64 string              `json:"mappingFileBase64,omitempty"`
	Options           fileOptions         `json:"options"`
}

type reconcileResponse struct {
	Rows    []models.MatchedRow `json:"rows"`
	Summary *models.Summary     `json:"summary"`
	Meta    processMeta         `json:"meta"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, requestID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req reconcileRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, requestID, err)
		return
	}
	if req.Supplier == "" {
		s.writeError(w, requestID, errors.InputError(errors.CodeMalformedPayload, "supplier is required", nil))
		return
	}
	actData, err := decodeFile(req.ActFileName, req.ActFileBase64)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}
	var systems []SystemFile
	for _, sf := range req.SystemFiles {
		data, err := decodeFile(sf.FileName, sf.FileBase64)
		if err != nil {
			s.writeError(w, requestID, err)
			return
		}
		systems = append(systems, SystemFile{FileName: sf.FileName, Data: data})
	}
	var mapping []byte
	if req.MappingFileBase64 != "" {
		mapping, err = decodeFile("mapping.xlsx", req.MappingFileBase64)
		if err != nil {
			s.writeError(w, requestID, err)
			return
		}
	}

	result, err := s.pipeline.Reconcile(r.Context(), req.ActFileName, actData, systems, mapping, req.Supplier, req.Options.toProcessOptions())
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reconcileResponse{
		Rows:    result.Rows,
		Summary: result.Summary,
		Meta:    processMeta{RowCount: len(result.Rows), RequestID: requestID},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		return errors.InputError(errors.CodeMalformedPayload, "failed to read request body", err)
	}
	if int64(len(body)) > s.maxBody {
		return errors.InputError(errors.CodeRequestTooLarge,
			fmt.Sprintf("%d bytes read, limit %d", len(body), s.maxBody), nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.InputError(errors.CodeMalformedPayload, "request body is not valid JSON", err)
	}
	return nil
}

func decodeFile(name, b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, errors.InputError(errors.CodeMalformedPayload, "missing file payload: "+name, nil)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.InputError(errors.CodeMalformedPayload, "invalid base64 payload: "+name, err)
	}
	return data, nil
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

// writeError maps input failures to 400 and everything else,
// including processing-time payload overruns, to 500. Messages go
// through the ASCII-safe formatter so clients with broken encodings
// still get readable errors.
func (s *Server) writeError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusInternalServerError
	if errors.HasCategory(err, errors.CategoryInput) {
		status = http.StatusBadRequest
	}
	s.log.WithField("requestId", requestID).WithError(err).Error("request failed")
	s.writeJSON(w, status, errorResponse{
		Error:     errors.FormatForResponse(err),
		RequestID: requestID,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}
