package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/username/taxfolio/declaration/src/export"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/processors"
	"github.com/username/taxfolio/declaration/src/security/validation"
	"github.com/username/taxfolio/declaration/src/services"
	"github.com/username/taxfolio/declaration/src/utils"
)

const combineField = "combine"

type ReportHandler struct {
	reportService services.ReportService
	maxUpload     int64
}

func NewReportHandler(service services.ReportService, maxUploadSizeBytes int64) *ReportHandler {
	return &ReportHandler{reportService: service, maxUpload: maxUploadSizeBytes}
}

func (h *ReportHandler) HandleListParsers(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string][]string{"parsers": h.reportService.Parsers()})
}

// HandleCreateReport reads a multipart upload where every file part is named
// after the parser of its source. Several files may share a parser. A
// "combine" field set to true merges all sources.
func (h *ReportHandler) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		utils.SendJSONError(w, "expected a multipart/form-data upload", http.StatusBadRequest)
		return
	}

	req := services.ReportRequest{}
	index := make(map[string]int)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.sendUploadError(w, r, err)
			return
		}
		name := strings.ToLower(strings.TrimSpace(part.FormName()))
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			h.sendUploadError(w, r, err)
			return
		}

		if part.FileName() == "" {
			if name == combineField {
				req.Combine, _ = strconv.ParseBool(strings.TrimSpace(string(data)))
			}
			continue
		}

		if err := validation.ValidateClientContentType(part.Header.Get("Content-Type")); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := validation.ValidateFileContent(data); err != nil {
			logger.L.Warn("Statement content validation failed", "parser", name, "filename", part.FileName(), "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		i, ok := index[name]
		if !ok {
			i = len(req.Sources)
			index[name] = i
			req.Sources = append(req.Sources, services.SourceInput{Parser: name})
		}
		req.Sources[i].Files = append(req.Sources[i].Files, bytes.NewReader(data))
	}

	if q := r.URL.Query().Get(combineField); q != "" {
		req.Combine, _ = strconv.ParseBool(q)
	}

	logger.L.Info("Processing report request", "requestID", requestID(r), "sources", len(req.Sources), "combine", req.Combine)
	report, err := h.reportService.Generate(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.L.Error("Internal error generating report", "requestID", requestID(r), "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the statements.", status)
			return
		}
		utils.SendJSONError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/reports/"+report.RunID)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding JSON response for report", "runID", report.RunID, "error", err)
	}
}

func (h *ReportHandler) sendUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	// multipart may flatten the error into its message
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		logger.L.Warn("Upload too large", "requestID", requestID(r), "limit", h.maxUpload)
		utils.SendJSONError(w, fmt.Sprintf("upload too large, max %s", humanize.IBytes(uint64(h.maxUpload))), http.StatusRequestEntityTooLarge)
		return
	}
	utils.SendJSONError(w, "failed to read upload: "+err.Error(), http.StatusBadRequest)
}

func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	report, err := h.reportService.GetReport(runID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	etag, etagErr := utils.GenerateETag(report)
	if etagErr == nil && etag != "" {
		quoted := fmt.Sprintf("\"%s\"", etag)
		w.Header().Set("ETag", quoted)
		for _, c := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(c) == quoted {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else if etagErr != nil {
		logger.L.Error("Failed to generate ETag for report", "runID", runID, "error", etagErr)
	}
	utils.SendJSON(w, report)
}

// HandleExport returns one table as CSV, the whole report as an XLSX
// workbook for table "xlsx", or the XML declaration for table "xml". The "figures" query selects a source in
// per-source reports.
func (h *ReportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	table := chi.URLParam(r, "table")
	key := r.URL.Query().Get("figures")

	var buf bytes.Buffer
	if err := h.reportService.Export(runID, table, key, &buf); err != nil {
		utils.SendJSONError(w, err.Error(), statusFor(err))
		return
	}

	contentType, filename := "text/csv; charset=utf-8", table+".csv"
	switch table {
	case export.Workbook:
		contentType, filename = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "report.xlsx"
	case export.Declaration:
		contentType, filename = "application/xml; charset=utf-8", "declaration.xml"
	}
	if key != "" {
		filename = key + "-" + filename
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logger.L.Error("Error writing export", "runID", runID, "table", table, "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, export.ErrUnknownTable),
		errors.Is(err, export.ErrUnknownFigures):
		return http.StatusNotFound
	case errors.Is(err, export.ErrTableSkipped):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnsupportedParser),
		errors.Is(err, services.ErrNoActivities),
		errors.Is(err, services.ErrParsingFailed),
		errors.Is(err, processors.ErrDuplicateSource):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrProcessingFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
