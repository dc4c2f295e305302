package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
	"github.com/koopa0/system-design/item-cache/pkg/logger"
)

// 回應標頭
const (
	HeaderRequestID   = "X-Request-ID"
	HeaderCacheSource = "X-Cache-Source"
)

// MaxRequestBodyBytes 建立與更新請求內容的上限
const MaxRequestBodyBytes = 1 << 20

// ReadinessCheck 就緒檢查項目
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler HTTP 請求處理器
type Handler struct {
	items    *ItemCache
	logger   *slog.Logger
	validate *validator.Validate
	checks   []ReadinessCheck
}

// NewHandler 創建 HTTP 處理器
func NewHandler(items *ItemCache, logger *slog.Logger, checks ...ReadinessCheck) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		items:    items,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		checks:   checks,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈：請求 ID -> 日誌 -> 恢復 -> 業務處理
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.requestID(h.loggerMiddleware(h.recoverer(handler)))
	}

	mux.HandleFunc("GET /items/{id}", wrap(h.getItem))
	mux.HandleFunc("GET /items", wrap(h.listItems))
	mux.HandleFunc("POST /items", wrap(h.createItem))
	mux.HandleFunc("PUT /items/{id}", wrap(h.updateItem))
	mux.HandleFunc("DELETE /items/{id}", wrap(h.deleteItem))

	mux.HandleFunc("GET /stats", wrap(h.stats))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /ready", wrap(h.ready))

	return mux
}

// itemRequest 建立與更新的請求內容
//
// 指標欄位用來區分「缺少」與「空字串」，空字串是合法值。
type itemRequest struct {
	Name        *string `json:"name" validate:"required"`
	Description *string `json:"description" validate:"required"`
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type createResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// getItem 讀取單一項目
func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, source, err := h.items.FetchItem(r.Context(), id)
	if err != nil {
		h.respondFailure(w, r, "fetch item", err, "item_id", id)
		return
	}

	w.Header().Set(HeaderCacheSource, string(source))
	h.respondJSON(w, http.StatusOK, dataResponse{Data: item})
}

// listItems 讀取所有項目
func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, source, err := h.items.FetchAllItems(r.Context())
	if err != nil {
		h.respondFailure(w, r, "fetch all items", err)
		return
	}

	w.Header().Set(HeaderCacheSource, string(source))
	h.respondJSON(w, http.StatusOK, dataResponse{Data: items})
}

// createItem 新增項目
func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}

	item, err := h.items.CreateItem(r.Context(), *req.Name, *req.Description)
	if err != nil {
		h.respondFailure(w, r, "create item", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, createResponse{
		ID:   item.ID,
		Name: item.Name,
	})
}

// updateItem 更新項目
func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeItemRequest(w, r)
	if !ok {
		return
	}

	if err := h.items.UpdateItem(r.Context(), id, *req.Name, *req.Description); err != nil {
		h.respondFailure(w, r, "update item", err, "item_id", id)
		return
	}

	h.respondJSON(w, http.StatusOK, messageResponse{Message: "Item updated"})
}

// deleteItem 刪除項目
func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.items.DeleteItem(r.Context(), id); err != nil {
		h.respondFailure(w, r, "delete item", err, "item_id", id)
		return
	}

	h.respondJSON(w, http.StatusOK, messageResponse{Message: "Item deleted"})
}

// stats 快取統計
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.items.Stats())
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// ready 就緒檢查
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", check.Name, "error", err)
			h.respondError(w, check.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Ready")
}

// pathID 解析路徑中的項目 ID
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondFailure(w, r, "parse item id", apperrors.InvalidInput("invalid item id"))
		return 0, false
	}
	return id, true
}

// decodeItemRequest 解析並驗證請求內容，失敗時已寫出回應
func (h *Handler) decodeItemRequest(w http.ResponseWriter, r *http.Request) (itemRequest, bool) {
	var req itemRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return req, false
		}
		h.respondFailure(w, r, "decode request", apperrors.InvalidInput("invalid request body"))
		return req, false
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondFailure(w, r, "validate request", apperrors.InvalidInput("name and description are required"))
		return req, false
	}

	return req, true
}

// respondFailure 將協調器錯誤轉為 HTTP 回應
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, op string, err error, args ...any) {
	switch {
	case apperrors.IsNotFound(err):
		h.respondError(w, apperrors.ErrItemNotFound.Message, http.StatusNotFound)
	case apperrors.IsInvalidInput(err):
		h.respondError(w, clientMessage(err), http.StatusBadRequest)
	default:
		logger.LogError(r.Context(), h.logger, op+" failed", err, args...)
		h.respondError(w, apperrors.ErrInternal.Message, http.StatusInternalServerError)
	}
}

// clientMessage 取出可回應給客戶端的說明
func clientMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Details != "" {
		return appErr.Details
	}
	return apperrors.ErrInvalidInput.Message
}

// 中間件
// requestID 確保每個請求都帶有 ID
func (h *Handler) requestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	}
}

// loggerMiddleware 記錄請求日誌
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以捕獲狀態碼
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(ww, r)

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"cache_source", ww.Header().Get(HeaderCacheSource),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	}
}

// recoverer 恢復 panic
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.ErrorContext(r.Context(), "panic recovered", "error", err)
				h.respondError(w, apperrors.ErrInternal.Message, http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err, "message", message)
	}
}

// responseWriter 包裝以捕獲狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
