package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// Error codes carried in the "code" field of error responses.
const (
	CodeValidationFailed   = "validation_failed"
	CodeUnauthenticated    = "unauthenticated"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeProductNotFound    = "product_not_found"
	CodeInsufficientStock  = "insufficient_stock"
	CodeStockConflict      = "stock_conflict"
	CodeDuplicateInvoice   = "duplicate_invoice"
	CodeBusy               = "busy"
	CodeCanceled           = "canceled"
	CodePersistenceFailure = "persistence_failure"
	CodeInternal           = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Status: "error", Message: message, Code: code})
}

// writeEngineError maps an error returned by the engine, or by request
// decoding, to its status and code. Internal error text never reaches the
// response body.
func writeEngineError(w http.ResponseWriter, logger logrus.FieldLogger, op string, err error) {
	var (
		verr     *ValidationError
		notFound *inventory.ProductNotFoundError
		short    *inventory.InsufficientStockError
		conflict *inventory.StockConflictError
		invalid  *inventory.InvalidProductError
		perr     *inventory.PersistenceError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Response{
			Status:  "error",
			Message: "request validation failed",
			Code:    CodeValidationFailed,
			Errors:  verr.Fields,
		})

	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, Response{
			Status:  "error",
			Message: "request validation failed",
			Code:    CodeValidationFailed,
			Errors:  []FieldError{{Field: invalid.Field, Message: invalid.Message}},
		})

	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, Response{
			Status:  "error",
			Message: notFound.Error(),
			Code:    CodeProductNotFound,
			Data:    map[string]int64{"product_id": int64(notFound.ProductID)},
		})

	case errors.As(err, &short):
		writeJSON(w, http.StatusBadRequest, Response{
			Status:  "error",
			Message: short.Error(),
			Code:    CodeInsufficientStock,
			Data: StockShortageDTO{
				ProductID:   int64(short.ProductID),
				ProductName: short.ProductName,
				Available:   short.Available,
				Required:    short.Required,
			},
		})

	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, Response{
			Status:  "error",
			Message: conflict.Error(),
			Code:    CodeStockConflict,
			Data: StockShortageDTO{
				ProductID:   int64(conflict.ProductID),
				ProductName: conflict.ProductName,
				Available:   conflict.Available,
				Required:    conflict.Required,
			},
		})

	case errors.Is(err, inventory.ErrConcurrentStockConflict):
		writeError(w, http.StatusConflict, CodeStockConflict, err.Error())

	case errors.Is(err, inventory.ErrDuplicateInvoice):
		writeError(w, http.StatusConflict, CodeDuplicateInvoice, err.Error())

	case errors.Is(err, inventory.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, CodeBusy, "server is busy, retry shortly")

	case inventory.Classify(err) == "canceled":
		writeError(w, http.StatusServiceUnavailable, CodeCanceled, "request canceled")

	case errors.As(err, &perr):
		// already logged with its failure code by the coordinator
		writeJSON(w, http.StatusInternalServerError, Response{
			Status:      "error",
			Message:     perr.Error(),
			Code:        CodePersistenceFailure,
			FailureCode: perr.Code,
		})

	default:
		config.LogError(logger, "api", op, "unclassified error", nil, err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
