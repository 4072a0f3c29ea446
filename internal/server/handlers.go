package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/franz/order-recon/internal/delivery"
	"github.com/franz/order-recon/internal/enrich"
	"github.com/franz/order-recon/internal/pipeline"
	"github.com/franz/order-recon/internal/service"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/table"
	"github.com/franz/order-recon/internal/util"
	"github.com/franz/order-recon/internal/workbook"
)

const (
	contentTypeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZip    = "application/zip"
	contentTypeSQLite = "application/vnd.sqlite3"
	uploadField       = "archive"
)

type errorResponse struct {
	Error string `json:"error"`
}

type stepResponse struct {
	Source     string `json:"source"`
	Skipped    bool   `json:"skipped"`
	Rows       int    `json:"rows"`
	Duplicates int    `json:"duplicates"`
	Matched    int    `json:"matched"`
	Unmatched  int    `json:"unmatched"`
}

type uploadResponse struct {
	RunID       string         `json:"run_id"`
	ProcessedOn string         `json:"processed_on"`
	Rows        int            `json:"rows"`
	Columns     int            `json:"columns"`
	DurationMs  int64          `json:"duration_ms"`
	Ignored     []string       `json:"ignored,omitempty"`
	Steps       []stepResponse `json:"steps"`
}

type datasetResponse struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.DebugLog("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func attachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, delivery.ErrInvalidArchive),
		errors.Is(err, util.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNoDataset):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotApplicable):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrMissingOrders),
		errors.Is(err, enrich.ErrDateParse),
		errors.Is(err, table.ErrMissingColumn),
		errors.Is(err, table.ErrColumnCollision):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.UpdateOptions{}

	if d := q.Get("date"); d != "" {
		day, err := util.ParseDate(d, s.now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		opts.ProcessedOn = day
	}
	if l := q.Get("lenient"); l != "" {
		lenient, err := strconv.ParseBool(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: lenient must be a boolean", util.ErrInvalidConfig))
			return
		}
		opts.LenientDates = lenient
	}

	data, size, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.svc.Update(r.Context(), data, size, opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := uploadResponse{
		RunID:       res.RunID,
		ProcessedOn: res.ProcessedOn.Format(util.DateLayout),
		Rows:        res.Combined.Len(),
		Columns:     res.Combined.Width(),
		DurationMs:  res.Duration.Milliseconds(),
		Ignored:     res.Ignored,
	}
	for _, st := range res.Steps {
		resp.Steps = append(resp.Steps, stepResponse{
			Source:     string(st.Source),
			Skipped:    st.Skipped,
			Rows:       st.Rows,
			Duplicates: st.Duplicates,
			Matched:    st.Matched,
			Unmatched:  st.Unmatched,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// readUpload accepts the archive as a raw body or as a multipart file field
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (io.ReaderAt, int64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	var src io.Reader = r.Body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", delivery.ErrInvalidArchive, err)
		}
		f, _, err := r.FormFile(uploadField)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: field %q: %v", delivery.ErrInvalidArchive, uploadField, err)
		}
		defer f.Close()
		src = f
	}

	body, err := io.ReadAll(src)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", delivery.ErrInvalidArchive, err)
	}
	return bytes.NewReader(body), int64(len(body)), nil
}

func (s *Server) currentDataset(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Dataset(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := workbook.Write(&buf, t, delivery.ExportSheet); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		attachment(w, contentTypeXLSX, pipeline.CombinedName+".xlsx")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	resp := datasetResponse{Columns: t.Columns(), Rows: make([][]interface{}, t.Len())}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		out := make([]interface{}, len(row))
		for j, v := range row {
			out[j] = v.Interface()
		}
		resp.Rows[i] = out
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) exportArchive(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if d := r.URL.Query().Get("date"); d != "" {
		var err error
		if day, err = util.ParseDate(d, day); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var buf bytes.Buffer
	res, err := s.svc.Export(r.Context(), &buf, day, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	attachment(w, contentTypeZip, res.Name)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) databaseSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: database download needs a SQLite store", util.ErrNotFound))
		return
	}
	if _, err := s.svc.Dataset(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	dir, err := os.MkdirTemp("", "recon-snapshot-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, pipeline.CombinedName+".db")
	if err := s.snapshot.Snapshot(r.Context(), path); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	attachment(w, contentTypeSQLite, pipeline.CombinedName+".db")
	http.ServeContent(w, r, pipeline.CombinedName+".db", time.Now(), f)
}
