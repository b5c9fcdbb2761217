package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/store"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// parseExportFile splits "{dataset}.{csv|json}".
func parseExportFile(file string) (dataset, format string, ok bool) {
	ext := path.Ext(file)
	dataset = strings.TrimSuffix(file, ext)
	format = strings.TrimPrefix(ext, ".")
	if dataset == "" || (format != formatCSV && format != formatJSON) {
		return "", "", false
	}
	return dataset, format, true
}

// parseStores splits a comma list, dropping blanks and the placeholder
// values spreadsheet clients send for an unset parameter.
func parseStores(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" || s == "null" || s == "undefined" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// parseHours keeps the numeric entries of a comma list.
func parseHours(raw string) []int {
	var out []int
	for _, s := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func filterFromRequest(r *http.Request) store.Filter {
	q := r.URL.Query()
	f := store.Filter{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Stores:    parseStores(q.Get("franchise_store")),
		Hours:     parseHours(q.Get("hours")),
	}
	// A half-open range means no date filter.
	if f.StartDate == "" || f.EndDate == "" {
		f.StartDate, f.EndDate = "", ""
	}
	return f
}

// exportFilename builds the download name, e.g.
// "channel_data_2025-03-01_to_2025-03-07_stores_2.csv".
func exportFilename(dataset, format string, f store.Filter) string {
	var b strings.Builder
	b.WriteString(dataset)
	if f.StartDate != "" && f.EndDate != "" {
		fmt.Fprintf(&b, "_%s_to_%s", f.StartDate, f.EndDate)
	} else {
		b.WriteString("_all_dates")
	}
	if len(f.Stores) > 0 {
		fmt.Fprintf(&b, "_stores_%d", len(f.Stores))
	}
	b.WriteString(".")
	b.WriteString(format)
	return b.String()
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	dataset, format, ok := parseExportFile(chi.URLParam(r, "file"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown export")
		return
	}
	f := filterFromRequest(r)
	key := exportKey(dataset, format, f)

	if e, hit := s.cache.get(key); hit {
		writeExport(w, e)
		return
	}

	table, err := s.store.QueryDataset(r.Context(), dataset, f)
	if err != nil {
		if errors.Is(err, store.ErrUnknownDataset) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown dataset %q", dataset))
			return
		}
		log.Error().Err(err).Str("dataset", dataset).Msg("export query failed")
		writeError(w, http.StatusInternalServerError, "failed to export "+dataset+": "+err.Error())
		return
	}

	e := &cacheEntry{filename: exportFilename(dataset, format, f)}
	switch format {
	case formatCSV:
		e.contentType = "text/csv; charset=utf-8"
		e.body, err = renderCSV(table)
	default:
		e.contentType = "application/json; charset=utf-8"
		e.body, err = renderJSON(table)
	}
	if err != nil {
		log.Error().Err(err).Str("dataset", dataset).Msg("export render failed")
		writeError(w, http.StatusInternalServerError, "failed to export "+dataset+": "+err.Error())
		return
	}

	log.Info().
		Str("dataset", dataset).
		Str("format", format).
		Int("record_count", len(table.Rows)).
		Msg("export completed")

	s.cache.add(key, e)
	writeExport(w, e)
}

func writeExport(w http.ResponseWriter, e *cacheEntry) {
	w.Header().Set("Content-Type", e.contentType)
	if strings.HasPrefix(e.contentType, "text/csv") {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(e.body); err != nil {
		log.Debug().Err(err).Msg("export: client write failed")
	}
}

func renderCSV(t *store.Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("api: writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}

func renderJSON(t *store.Table) ([]byte, error) {
	data := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			m[col] = row[i]
		}
		data = append(data, m)
	}
	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(map[string]any{
		"success":      true,
		"record_count": len(data),
		"data":         data,
	})
	if err != nil {
		return nil, fmt.Errorf("api: writing json: %w", err)
	}
	return buf.Bytes(), nil
}
