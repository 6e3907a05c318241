package handler

import (
	"net/http"

	"github.com/bcnelson/activation-key-server/internal/service"
)

// ReportHandler handles the read-only admin reports.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Statistics returns system-wide counts.
func (h *ReportHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, h.reports.Stats(r.Context()))
}

// Customers returns the customer rollup.
func (h *ReportHandler) Customers(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, h.reports.Customers(r.Context()))
}

// Products returns the product rollup.
func (h *ReportHandler) Products(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, h.reports.Products(r.Context()))
}
