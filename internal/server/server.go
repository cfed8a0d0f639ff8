package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/aimerge"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/preview"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/valuerapi"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/wizard"
)

// BackendAPI is everything the server needs from the ValuerPro backend:
// the session bridge plus report export.
type BackendAPI interface {
	wizard.ReportAPI
	ExportPDF(ctx context.Context, reportID string) ([]byte, error)
	ExportDOCX(ctx context.Context, reportID string) ([]byte, error)
}

// PreviewPDFRenderer renders a markdown preview to PDF bytes.
type PreviewPDFRenderer interface {
	Render(ctx context.Context, markdown, title string) ([]byte, error)
}

type Server struct {
	api        BackendAPI
	store      *SessionStore
	flows      *wizard.FlowRegistry
	renderer   PreviewPDFRenderer
	sessionCfg wizard.Config
}

// NewServer wires the session HTTP API. sessionCfg carries the timing
// knobs and default currency; its Flow field is ignored (each session
// picks a flow at creation).
func NewServer(api BackendAPI, store *SessionStore, flows *wizard.FlowRegistry, renderer PreviewPDFRenderer, sessionCfg wizard.Config) http.Handler {
	s := &Server{
		api:        api,
		store:      store,
		flows:      flows,
		renderer:   renderer,
		sessionCfg: sessionCfg,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/flows", s.handleFlows)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSession)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"status": "ok"})
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, 200, map[string]any{"flows": s.flows.Names()})
}

type createSessionRequest struct {
	Flow     string `json:"flow,omitempty"`
	ReportID string `json:"report_id,omitempty"`
}

// handleSessions creates a session: with a report_id it loads the
// existing report, otherwise it creates a fresh one.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, 400, "invalid JSON body")
		return
	}
	flow, ok := s.flows.Lookup(req.Flow)
	if !ok {
		writeError(w, 400, fmt.Sprintf("unknown flow %q", req.Flow))
		return
	}

	sess := wizard.NewSession(s.api, s.sessionConfig(flow))
	if req.ReportID != "" {
		if err := sess.LoadReport(r.Context(), req.ReportID); err != nil {
			sess.Close()
			log.Printf("load report %s: %v", req.ReportID, err)
			writeError(w, 502, "failed to load report from backend")
			return
		}
	} else {
		if err := sess.CreateReport(r.Context()); err != nil {
			sess.Close()
			log.Printf("create report: %v", err)
			writeError(w, 502, "failed to create report on backend")
			return
		}
	}

	entry, err := s.store.Add(flow.Name, sess)
	if err != nil {
		sess.Close()
		log.Printf("persist session: %v", err)
		writeError(w, 500, "failed to persist session")
		return
	}
	writeJSON(w, 201, map[string]any{
		"token": entry.Token,
		"state": sess.State(),
	})
}

func (s *Server) sessionConfig(flow wizard.Flow) wizard.Config {
	cfg := s.sessionCfg
	cfg.Flow = flow
	return cfg
}

// handleSession routes /sessions/{token} and its sub-resources.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	token, sub, _ := strings.Cut(rest, "/")
	if token == "" {
		writeError(w, 400, "missing session token")
		return
	}

	entry, err := s.lookup(r.Context(), token)
	if err != nil {
		log.Printf("rehydrate session %s: %v", token, err)
		writeError(w, 500, "failed to restore session")
		return
	}
	if entry == nil {
		writeError(w, 404, "unknown session")
		return
	}

	switch {
	case sub == "":
		s.handleSessionRoot(w, r, entry)
	case strings.HasPrefix(sub, "steps/"):
		s.handleStepData(w, r, entry, strings.TrimPrefix(sub, "steps/"))
	case sub == "goto":
		s.handleGoto(w, r, entry)
	case sub == "validation":
		s.handleValidation(w, r, entry)
	case sub == "merge":
		s.handleMerge(w, r, entry)
	case sub == "save":
		s.handleSave(w, r, entry)
	case sub == "audit":
		s.handleAudit(w, r, entry)
	case sub == "ocr-results":
		s.handleOCRResults(w, r, entry)
	case sub == "preview.md" || sub == "preview.html" || sub == "preview.pdf":
		s.handlePreview(w, r, entry, sub)
	case sub == "export":
		s.handleExport(w, r, entry)
	default:
		http.NotFound(w, r)
	}
}

// lookup finds a live session, rehydrating from the local store when the
// process restarted since the session was created.
func (s *Server) lookup(ctx context.Context, token string) (*SessionEntry, error) {
	if entry := s.store.Get(token); entry != nil {
		return entry, nil
	}
	snap, ok, err := s.store.LoadSnapshot(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	flow, found := s.flows.Lookup(snap.FlowName)
	if !found {
		return nil, fmt.Errorf("persisted session references unknown flow %q", snap.FlowName)
	}
	sess := wizard.NewSession(s.api, s.sessionConfig(flow))
	if snap.ReportID != "" {
		if err := sess.Restore(snap.ReportID, snap.PropertyID, snap.Data, snap.CurrentStep); err != nil {
			sess.Close()
			return nil, err
		}
	}
	return s.store.Attach(snap, sess), nil
}

func (s *Server) handleSessionRoot(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, 200, entry.Session.State())
	case http.MethodDelete:
		if err := s.store.Remove(entry.Token); err != nil {
			log.Printf("remove session %s: %v", entry.Token, err)
			writeError(w, 500, "failed to remove session")
			return
		}
		writeJSON(w, 200, map[string]any{"closed": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStepData(w http.ResponseWriter, r *http.Request, entry *SessionEntry, step string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var partial draft.StepData
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	if err := entry.Session.UpdateStepData(step, partial); err != nil {
		writeError(w, 400, fmt.Sprintf("unknown step %q", step))
		return
	}
	s.persist(entry)
	writeJSON(w, 200, entry.Session.State())
}

type gotoRequest struct {
	Step int `json:"step"`
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req gotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	allowed := entry.Session.CanGoToStep(req.Step)
	entry.Session.GoToStep(req.Step)
	s.persist(entry)
	writeJSON(w, 200, map[string]any{
		"allowed":      allowed,
		"current_step": entry.Session.CurrentStep(),
	})
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, 200, map[string]any{
		"completion": entry.Session.StepCompletion(),
		"errors":     entry.Session.Errors(),
	})
}

// handleMerge applies an AI document-analysis payload to the draft. The
// body is the raw payload; merge policy comes from query parameters.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		writeError(w, 400, "failed to read payload")
		return
	}

	opts := aimerge.DefaultOptions()
	if v := r.URL.Query().Get("preserve_user_data"); v != "" {
		opts.PreserveUserData, _ = strconv.ParseBool(v)
	}
	if v := r.URL.Query().Get("overwrite_empty_fields"); v != "" {
		opts.OverwriteEmptyFields, _ = strconv.ParseBool(v)
	}
	if v := r.URL.Query().Get("validate_data"); v != "" {
		opts.ValidateData, _ = strconv.ParseBool(v)
	}

	res := aimerge.New(opts).Merge(entry.Session.Data(), payload)
	if res.FieldsUpdated > 0 {
		entry.Session.SetData(res.MergedData)
		s.persist(entry)
	}
	if err := s.store.AppendAudit(entry.Token, res); err != nil {
		log.Printf("audit merge for %s: %v", entry.Token, err)
	}
	writeJSON(w, 200, map[string]any{
		"source":            res.Source,
		"fields_updated":    res.FieldsUpdated,
		"changes_applied":   res.ChangesApplied,
		"validation_errors": res.ValidationErrors,
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := entry.Session.SaveReport(r.Context()); err != nil {
		log.Printf("save session %s: %v", entry.Token, err)
		writeError(w, 502, "failed to save report to backend")
		return
	}
	s.persist(entry)
	writeJSON(w, 200, map[string]any{"saved": true, "report_id": entry.Session.ReportID()})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := s.store.Audits(entry.Token)
	if err != nil {
		log.Printf("list audit for %s: %v", entry.Token, err)
		writeError(w, 500, "failed to read merge journal")
		return
	}
	if records == nil {
		records = []AuditRecord{}
	}
	writeJSON(w, 200, map[string]any{"merges": records})
}

// handleOCRResults exposes the analyses fetched when the session loaded
// an existing report, so clients can offer them for merging.
func (s *Server) handleOCRResults(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	results := entry.Session.OCRResults()
	if results == nil {
		results = []valuerapi.OCRResult{}
	}
	writeJSON(w, 200, map[string]any{"ocr_results": results})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, entry *SessionEntry, format string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data := entry.Session.Data()
	md := preview.Summary(data)
	title := draft.GetString(data.Step(draft.StepReportInfo), "reference_number")

	switch format {
	case "preview.md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(md))
	case "preview.html":
		doc, err := preview.HTML(md, title)
		if err != nil {
			log.Printf("render preview html: %v", err)
			writeError(w, 500, "failed to render preview")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(doc))
	case "preview.pdf":
		pdf, err := s.renderer.Render(r.Context(), md, title)
		if err != nil {
			log.Printf("render preview pdf: %v", err)
			writeError(w, 500, "failed to render preview PDF")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="preview.pdf"`)
		_, _ = w.Write(pdf)
	}
}

// handleExport proxies the backend's final document rendering.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, entry *SessionEntry) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reportID := entry.Session.ReportID()
	if reportID == "" {
		writeError(w, 409, "session has no backend report yet")
		return
	}

	format := r.URL.Query().Get("format")
	var blob []byte
	var contentType, filename string
	var err error
	switch format {
	case "", "pdf":
		blob, err = s.api.ExportPDF(r.Context(), reportID)
		contentType, filename = "application/pdf", "report.pdf"
	case "docx":
		blob, err = s.api.ExportDOCX(r.Context(), reportID)
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		filename = "report.docx"
	default:
		writeError(w, 400, fmt.Sprintf("unsupported export format %q", format))
		return
	}
	if err != nil {
		log.Printf("export %s (%s): %v", reportID, format, err)
		writeError(w, 502, "failed to export report from backend")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(blob)
}

func (s *Server) persist(entry *SessionEntry) {
	if err := s.store.Persist(entry); err != nil {
		log.Printf("persist session %s: %v", entry.Token, err)
	}
}
