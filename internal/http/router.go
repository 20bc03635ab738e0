package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avikal/resumeai/internal/domain"
	"github.com/avikal/resumeai/internal/extraction"
	"github.com/avikal/resumeai/internal/service/account"
	"github.com/avikal/resumeai/internal/service/analyze"
	"github.com/avikal/resumeai/internal/service/auth"
)

const (
	rateWindowDefault   = time.Minute
	rateLimitMagicLink  = 5
	rateLimitVerify     = 12
	rateLimitAnalyze    = 10
	rateLimitUserRead   = 120
	maxPDFUploadBytes   = 10 << 20
	maxAnalyzeBodyBytes = 1 << 20
	healthCheckTimeout  = 2 * time.Second
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	analyze  analyze.Service
	account  account.Service
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, analyzeSvc analyze.Service, accountSvc account.Service, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		analyze:  analyzeSvc,
		account:  accountSvc,
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/api/auth/magic-link", r.handlerIPRate("/api/auth/magic-link", rateLimitMagicLink, rateWindowDefault, r.handleMagicLink))
	r.mux.HandleFunc("/api/auth/verify", r.handlerIPRate("/api/auth/verify", rateLimitVerify, rateWindowDefault, r.handleVerify))
	r.mux.HandleFunc("/api/analyze/text", r.handlerAuthRate("/api/analyze/text", rateLimitAnalyze, rateWindowDefault, r.handleAnalyzeText))
	r.mux.HandleFunc("/api/analyze/pdf", r.handlerAuthRate("/api/analyze/pdf", rateLimitAnalyze, rateWindowDefault, r.handleAnalyzePDF))
	r.mux.HandleFunc("/api/user/", r.handlerAuthRate("/api/user", rateLimitUserRead, rateWindowDefault, r.handleGetUser))
	r.mux.HandleFunc("/api/analyses/", r.handlerAuthRate("/api/analyses", rateLimitUserRead, rateWindowDefault, r.handleListAnalyses))
}

// instrument wraps a handler with request count and latency recording.
func (r *Router) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		r.recordRequestMetrics(req.Method, route, status, time.Since(start))
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()
	if r.dbHealth != nil {
		if err := r.dbHealth(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "disconnected",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

func (r *Router) handleMagicLink(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	challenge, err := r.auth.RequestLogin(req.Context(), payload.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      challenge.Token,
		"email":      challenge.Email,
		"expires_in": int(challenge.ExpiresIn / time.Second),
		"message":    "Magic link generated successfully",
	})
}

func (r *Router) handleVerify(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session, err := r.auth.VerifyLogin(req.Context(), payload.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      session.UserID,
		"email":        session.Email,
		"usage_count":  session.UsageCount,
		"usage_limit":  session.UsageLimit,
		"access_token": session.AccessToken,
	})
}

func (r *Router) handleAnalyzeText(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for analysis", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload struct {
		ResumeText string `json:"resume_text"`
		RoleTarget string `json:"role_target"`
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxAnalyzeBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	r.respondAnalysis(w, req, info.UserID, payload.ResumeText, payload.RoleTarget)
}

func (r *Router) handleAnalyzePDF(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for analysis", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxPDFUploadBytes)
	if err := req.ParseMultipartForm(maxPDFUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := req.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	contents, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	resumeText, err := extraction.PDFText(contents)
	if err != nil || strings.TrimSpace(resumeText) == "" {
		if err != nil {
			r.logger.Warn("pdf extraction failed", "user_id", info.UserID, "error", err)
		}
		writeError(w, http.StatusBadRequest, "Could not extract text from PDF")
		return
	}
	r.respondAnalysis(w, req, info.UserID, resumeText, req.FormValue("role_target"))
}

func (r *Router) respondAnalysis(w http.ResponseWriter, req *http.Request, userID, resumeText, roleTarget string) {
	result, err := r.analyze.Analyze(req.Context(), userID, resumeText, roleTarget)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analysis_id":    result.AnalysisID,
		"analysis":       result.Verdict,
		"remaining_uses": result.RemainingUses,
	})
}

func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	userID := strings.TrimPrefix(req.URL.Path, "/api/user/")
	if userID == "" || strings.Contains(userID, "/") {
		r.notFound(w)
		return
	}
	if !r.requireSelf(w, req, userID) {
		return
	}
	summary, err := r.account.Get(req.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          summary.ID,
		"email":       summary.Email,
		"usage_count": summary.UsageCount,
		"usage_limit": summary.UsageLimit,
	})
}

func (r *Router) handleListAnalyses(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	userID := strings.TrimPrefix(req.URL.Path, "/api/analyses/")
	if userID == "" || strings.Contains(userID, "/") {
		r.notFound(w)
		return
	}
	if !r.requireSelf(w, req, userID) {
		return
	}
	analyses, err := r.analyze.History(req.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	summaries := make([]map[string]any, 0, len(analyses))
	for _, a := range analyses {
		summaries = append(summaries, analysisSummary(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": summaries})
}

// requireSelf rejects reads of an account other than the authenticated one.
func (r *Router) requireSelf(w http.ResponseWriter, req *http.Request, userID string) bool {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return false
	}
	if info.UserID != userID {
		writeError(w, http.StatusForbidden, "access denied")
		return false
	}
	return true
}

func analysisSummary(a domain.Analysis) map[string]any {
	return map[string]any{
		"analysis_id":    a.ID,
		"overall_score":  a.Verdict.OverallScore,
		"score_verdict":  a.Verdict.ScoreVerdict,
		"resume_excerpt": a.ResumeExcerpt,
		"created_at":     a.CreatedAt,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
