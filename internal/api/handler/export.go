package handler

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/xuri/excelize/v2"
)

// exportColumns is the fixed column order of key exports.
var exportColumns = []string{
	"key_value", "key_type", "is_active", "is_banned", "activation_date",
	"expiry_date", "hwid", "machine_id", "email", "customer_name",
	"product_name", "notes", "created_at",
}

const (
	exportSheet = "Keys"
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler streams key exports.
type ExportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
	now     func() time.Time
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(reports *service.ReportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		reports: reports,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *ExportHandler) filename(ext string) string {
	return fmt.Sprintf("activation_keys_%s.%s", h.now().Format("20060102_150405"), ext)
}

// CSV writes every key as a CSV attachment.
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	keys := h.reports.ExportKeys(r.Context(), keyFilterFromQuery(r))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.filename("csv")+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write csv header", "error", err)
		return
	}
	for _, k := range keys {
		if err := cw.Write(exportRow(k)); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to write csv row", "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to flush csv", "error", err)
	}
}

// XLSX writes every key as a single-sheet workbook attachment.
func (h *ExportHandler) XLSX(w http.ResponseWriter, r *http.Request) {
	keys := h.reports.ExportKeys(r.Context(), keyFilterFromQuery(r))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := sw.SetRow("A1", toCells(exportColumns)); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	for i, k := range keys {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			handleError(w, r, h.logger, err)
			return
		}
		if err := sw.SetRow(cell, toCells(exportRow(k))); err != nil {
			handleError(w, r, h.logger, err)
			return
		}
	}
	if err := sw.Flush(); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.filename("xlsx")+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := f.WriteTo(w); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write xlsx", "error", err)
	}
}

func exportRow(k *domain.ActivationKey) []string {
	return []string{
		k.Value,
		k.KeyType,
		strconv.FormatBool(k.IsActive),
		strconv.FormatBool(k.IsBanned),
		formatTime(k.ActivationDate),
		formatTime(k.ExpiryDate),
		deref(k.HWID),
		deref(k.MachineID),
		deref(k.Email),
		deref(k.CustomerName),
		deref(k.ProductName),
		deref(k.Notes),
		k.CreatedAt.Format(time.RFC3339),
	}
}

func toCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
