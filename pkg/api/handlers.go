package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/logging"
	"github.com/matzehuels/shapeserial/pkg/serial"
	"github.com/matzehuels/shapeserial/pkg/store"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var contentTypes = map[string]string{
	"json":  "application/json",
	"jsonc": "application/json",
	"yaml":  "application/yaml",
	"cbor":  "application/cbor",
}

func contentType(format string) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type formatsResponse struct {
	Formats []string `json:"formats"`
	Default string   `json:"default"`
	Types   []string `json:"allowed_types"`
}

func (s *Server) listFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formatsResponse{
		Formats: s.formats.Names(),
		Default: s.formats.DefaultName(),
		Types:   s.schemas.AllowList(),
	})
}

// convert decodes the body in the "from" format and re-encodes it in the
// "to" format. Both default to the registry default.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := s.formatParam(q.Get("from")), s.formatParam(q.Get("to"))
	pretty, err := boolParam(q.Get("pretty"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := serial.DeserializeSafe(r.Context(), body, s.serialOptions(serial.Format(from))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := serial.Serialize(r.Context(), v, s.serialOptions(serial.Format(to), serial.Pretty(pretty))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writePayload(w, http.StatusOK, to, out)
}

type documentResponse struct {
	Key       string    `json:"key"`
	Format    string    `json:"format"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// putDocument stores the body after checking that it deserializes safely.
func (s *Server) putDocument(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := errors.ValidateKey(key); err != nil {
		s.writeError(w, r, err)
		return
	}
	format := s.formatParam(r.URL.Query().Get("format"))
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := serial.DeserializeSafe(r.Context(), body, s.serialOptions(serial.Format(format))...); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc := &store.Document{Key: key, Format: format, Payload: body, UpdatedAt: time.Now().UTC()}
	if err := s.store.Put(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("document stored", "key", key, "format", format, "bytes", len(body))
	writeJSON(w, http.StatusCreated, documentResponse{Key: key, Format: format, Size: len(body), UpdatedAt: doc.UpdatedAt})
}

// getDocument returns a stored document, converted when another format or
// pretty output is requested.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := errors.ValidateKey(key); err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	pretty, err := boolParam(q.Get("pretty"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to := doc.Format
	if f := q.Get("format"); f != "" {
		to = f
	}
	if to == doc.Format && !pretty {
		writePayload(w, http.StatusOK, doc.Format, doc.Payload)
		return
	}

	// A shared backend may hold documents this server did not check.
	v, err := serial.DeserializeSafe(r.Context(), doc.Payload, s.serialOptions(serial.Format(doc.Format))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := serial.Serialize(r.Context(), v, s.serialOptions(serial.Format(to), serial.Pretty(pretty))...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writePayload(w, http.StatusOK, to, out)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := errors.ValidateKey(key); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}

// ===== Helpers =====

func (s *Server) formatParam(name string) string {
	if name == "" {
		return s.formats.DefaultName()
	}
	return name
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(errors.ErrCodeInvalidInput, "invalid boolean %q", v)
	}
	return b, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body")
	}
	return body, nil
}

var errBodyTooLarge = errors.New(errors.ErrCodeInvalidInput, "request body too large")

func writePayload(w http.ResponseWriter, status int, format string, data []byte) {
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonAPI.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
