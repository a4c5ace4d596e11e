package http

import (
	"bytes"
	"log"
	"net/http"

	"answerlab/internal/app"
	"answerlab/internal/domain"
	"answerlab/internal/export"
)

// ExportHandler serves the whole collection as an xlsx workbook.
type ExportHandler struct {
	store   *app.SheetStore
	weights domain.Weights
}

func NewExportHandler(store *app.SheetStore, weights domain.Weights) *ExportHandler {
	return &ExportHandler{store: store, weights: weights}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, h.store.Sheets(), h.weights); err != nil {
		log.Printf("export failed: %v", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="answersheets.xlsx"`)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("export write failed: %v", err)
	}
}
