package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domainErrors "github.com/davidleathers/transaction-risk-core/internal/domain/errors"
	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
	"github.com/davidleathers/transaction-risk-core/internal/service/scoring"
)

// maxRulesDocBytes bounds a rules upload; real rule sets are a few KB.
const maxRulesDocBytes = 1 << 20

// Handler holds the HTTP surface over the scoring engine.
type Handler struct {
	engine   *scoring.Engine
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler creates the handler set.
func NewHandler(engine *scoring.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine:   engine,
		logger:   logger,
		validate: validator.New(),
	}
}

// handleScore is POST /v1/score: evaluate one transaction and return the
// verdict.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domainErrors.NewValidationError("INVALID_JSON", "request body is not valid JSON"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, domainErrors.NewValidationError("INVALID_REQUEST", err.Error()))
		return
	}

	txn, err := req.toDomain()
	if err != nil {
		h.writeError(w, domainErrors.NewValidationError("INVALID_AMOUNT", err.Error()))
		return
	}

	result, err := h.engine.Score(r.Context(), txn)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newScoreResponse(req.ExternalID, result))
}

// handleReloadRules is PUT /v1/rules: replace the active rule snapshot. A
// rejected document leaves the previous snapshot serving.
func (h *Handler) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, maxRulesDocBytes))
	if err != nil {
		h.writeError(w, domainErrors.NewValidationError("INVALID_BODY", "failed to read request body"))
		return
	}

	if err := h.engine.ReloadRules(doc); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeActiveRules(w)
}

// handleGetRules is GET /v1/rules: describe the active snapshot.
func (h *Handler) handleGetRules(w http.ResponseWriter, r *http.Request) {
	h.writeActiveRules(w)
}

// handleInvalidateFeature is DELETE /v1/features: drop one cached velocity
// feature. Query params: dimension, identity, window (Go duration).
func (h *Handler) handleInvalidateFeature(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := time.ParseDuration(q.Get("window"))
	if err != nil {
		h.writeError(w, domainErrors.NewValidationError("INVALID_WINDOW", "window must be a duration like 1h"))
		return
	}

	key, err := feature.NewKey(feature.Dimension(q.Get("dimension")), q.Get("identity"), window)
	if err != nil {
		h.writeError(w, domainErrors.NewValidationError("INVALID_FEATURE_KEY", err.Error()))
		return
	}

	if err := h.engine.InvalidateFeature(r.Context(), key); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth is GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeActiveRules(w http.ResponseWriter) {
	snap := h.engine.ActiveSnapshot()
	if snap == nil {
		h.writeError(w, domainErrors.NewNotFoundError("rule snapshot"))
		return
	}
	h.writeJSON(w, http.StatusOK, RulesResponse{
		Version:  snap.Version,
		Rules:    snap.Len(),
		LoadedAt: snap.LoadedAt,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := domainErrors.GetStatusCode(err)
	detail := ErrorDetail{Code: "INTERNAL_ERROR", Message: "internal error"}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		detail.Code = appErr.Code
		detail.Message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	h.writeJSON(w, status, ErrorResponse{Error: detail})
}
