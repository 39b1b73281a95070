package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	txentities "github.com/sand/fraud-detector/backend/internal/entities"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// maxUploadSize bounds the multipart form kept in memory.
const maxUploadSize = 32 << 20

type HTTPHandler struct {
	logger             *slog.Logger
	fraudService       FraudService
	transactionService TransactionService
}

func NewHTTPHandler(logger *slog.Logger, fraudService FraudService, transactionService TransactionService) *HTTPHandler {
	return &HTTPHandler{
		logger:             logger,
		fraudService:       fraudService,
		transactionService: transactionService,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Import
	router.HandleFunc("/upload", h.UploadHandler).Methods("POST")

	// Detection and dispatch
	router.HandleFunc("/detect-fraud", h.DetectFraudHandler).Methods("POST")
	router.HandleFunc("/tasks", h.EnqueueTaskHandler).Methods("POST")
	router.HandleFunc("/process-fraud", h.ProcessFraudHandler).Methods("POST")

	// Lookups
	router.HandleFunc("/transactions/user", h.GetUserTransactions).Methods("GET")
	router.HandleFunc("/suspicious/user", h.GetUserSuspicious).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (h *HTTPHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "No file was uploaded", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file was uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.transactionService.ImportCSV(r.Context(), file)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "[Upload] Import failed", "error", err)
		http.Error(w, fmt.Sprintf("Import failed: %v", err), http.StatusInternalServerError)
		return
	}

	if len(result.Errors) > 0 {
		writeText(w, http.StatusMultiStatus,
			fmt.Sprintf("%d transactions imported. %d rows failed.", result.Imported, len(result.Errors)))
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("%d transactions imported successfully!", result.Imported))
}

func (h *HTTPHandler) DetectFraudHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.fraudService.RunDetectionSweep(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "[Detect] Sweep failed", "error", err)
		http.Error(w, fmt.Sprintf("Fraud detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("%d suspicious transactions detected", count))
}

func (h *HTTPHandler) EnqueueTaskHandler(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeFlag(w, r)
	if !ok {
		return
	}

	if err := h.fraudService.Enqueue(r.Context(), ev); err != nil {
		h.logger.WarnContext(r.Context(), "[Tasks] Enqueue failed", "error", err, "transaction_id", ev.TransactionID)
		if errors.Is(err, entities.ErrQueueFull) || errors.Is(err, entities.ErrQueueClosed) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeText(w, http.StatusAccepted, "Task accepted")
}

func (h *HTTPHandler) ProcessFraudHandler(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeFlag(w, r)
	if !ok {
		return
	}

	outcome, err := h.fraudService.AcceptFlag(r.Context(), ev)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to save suspicious transaction: %v", err), http.StatusInternalServerError)
		return
	}

	if outcome == entities.OutcomeDuplicate {
		writeText(w, http.StatusOK, "Suspicious transaction already recorded")
		return
	}
	writeText(w, http.StatusOK, "Suspicious transaction saved")
}

// decodeFlag reads a FlagPayload body and writes 400 on any problem.
func (h *HTTPHandler) decodeFlag(w http.ResponseWriter, r *http.Request) (entities.FlagEvent, bool) {
	var payload entities.FlagPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return entities.FlagEvent{}, false
	}

	ev, err := payload.Event()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return entities.FlagEvent{}, false
	}
	return ev, true
}

func (h *HTTPHandler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	txs, err := h.transactionService.TransactionsByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []txentities.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *HTTPHandler) GetUserSuspicious(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	records, err := h.fraudService.SuspiciousByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []entities.SuspiciousRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		http.Error(w, "Missing required parameters: user_id", http.StatusBadRequest)
		return 0, false
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid user_id", http.StatusBadRequest)
		return 0, false
	}
	return userID, true
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
