// Package api exposes the command pipeline over HTTP: submit free-text
// commands, attach signatures, cancel, and inspect records.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/router"
	"github.com/wayfinder-hq/wayfinder-router/pkg/store"
)

// Server serves the command API
type Server struct {
	port   string
	router *router.Router
	logger logger.Logger
}

// NewServer creates a command API server
func NewServer(port string, r *router.Router, log logger.Logger) *Server {
	return &Server{port: port, router: r, logger: log}
}

// Start runs the API server until the process exits
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/commands", s.handleCommands)
	mux.HandleFunc("/v1/commands/", s.handleCommandByID)

	s.logger.Info("Starting command API on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, mux); err != nil {
		s.logger.Error("Command API server error: %v", err)
	}
}

type submitRequest struct {
	Text        string `json:"text"`
	UserAddress string `json:"user_address"`
}

type signatureRequest struct {
	Signature string `json:"signature"`
}

// handleCommands accepts new free-text commands
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.UserAddress) == "" {
		writeError(w, http.StatusBadRequest, "text and user_address are required")
		return
	}

	result, err := s.router.SubmitCommand(r.Context(), req.Text, req.UserAddress)
	if err != nil {
		s.logger.Error("command submission failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCommandByID dispatches /v1/commands/{id}[/signature|/cancel]
func (s *Server) handleCommandByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/commands/")
	parts := strings.SplitN(rest, "/", 2)
	recordID := parts[0]
	if recordID == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGet(w, r, recordID)
	case action == "signature" && r.Method == http.MethodPost:
		s.handleSignature(w, r, recordID)
	case action == "cancel" && r.Method == http.MethodPost:
		s.handleCancel(w, r, recordID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, recordID string) {
	record, err := s.router.GetRecord(r.Context(), recordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request, recordID string) {
	var req signatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature must be 0x-prefixed hex")
		return
	}

	result, err := s.router.ResumeWithSignature(r.Context(), recordID, signature)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		if errors.Is(err, router.ErrNotResumable) || strings.Contains(err.Error(), "authorization rejected") {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("resume for %s failed: %v", recordID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, recordID string) {
	if err := s.router.Cancel(r.Context(), recordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
