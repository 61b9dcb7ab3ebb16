package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
)

type filesResponse struct {
	Dir   string   `json:"dir"`
	Match string   `json:"match,omitempty"`
	Files []string `json:"files"`
}

type dirsResponse struct {
	Dir  string   `json:"dir"`
	Dirs []string `json:"dirs"`
}

type keyResponse struct {
	Key  string `json:"key"`
	URL  string `json:"url,omitempty"`
	Size int64  `json:"size,omitempty"`
}

type renameRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	NoClobber bool   `json:"noclobber"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok, err := s.fs.BucketExists(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "bucket missing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, match := q.Get("dir"), q.Get("match")

	names, err := s.fs.Ls(r.Context(), dir, match)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filesResponse{Dir: dir, Match: match, Files: names})
}

func (s *Server) handleLsDir(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")

	dirs, err := s.fs.LsDir(r.Context(), dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dirsResponse{Dir: dir, Dirs: dirs})
}

func (s *Server) handleURIBase(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"uribase": s.fs.URIBase()})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	obj, err := s.fs.Open(r.Context(), objectKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer obj.Close()

	setObjectHeaders(w, obj.Info())
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		// headers are gone; all we can do is log
		s.log.ErrorWith("failed to stream object", err, map[string]interface{}{"key": obj.Info().Key})
	}
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	info, err := s.fs.Stat(r.Context(), objectKey(r))
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	setObjectHeaders(w, info)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	key := objectKey(r)

	noClobber, err := boolParam(r, "noclobber")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if noClobber {
		name, err := s.fs.WriteNC(r.Context(), key, r.Body, r.ContentLength)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, keyResponse{Key: name, URL: s.fs.URL(name)})
		return
	}

	info, err := s.fs.Write(r.Context(), key, r.Body, r.ContentLength)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse{Key: info.Key, URL: s.fs.URL(info.Key), Size: info.Size})
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.Delete(r.Context(), objectKey(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid rename request", err))
		return
	}

	name := req.To
	var err error
	if req.NoClobber {
		name, err = s.fs.RenameNC(r.Context(), req.From, req.To)
	} else {
		err = s.fs.Rename(r.Context(), req.From, req.To)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Key: name, URL: s.fs.URL(name)})
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	name, err := s.fs.FindAvailableName(r.Context(), objectKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Key: name, URL: s.fs.URL(name)})
}

func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	key := objectKey(r)
	if key == "" {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "object key must not be empty"))
		return
	}

	expires := r.URL.Query().Get("expires")
	if expires == "" {
		writeJSON(w, http.StatusOK, keyResponse{Key: key, URL: s.fs.URL(key)})
		return
	}

	ttl, err := time.ParseDuration(expires)
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid expires parameter", err))
		return
	}
	u, err := s.fs.SignedURL(r.Context(), key, ttl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Key: key, URL: u})
}

// --- helpers ---

// objectKey returns the wildcard part of the route. chi matches on the raw
// path when the request carries escaped slashes, so decode it in that case.
func objectKey(r *http.Request) string {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if k, err := url.PathUnescape(key); err == nil {
			key = k
		}
	}
	return key
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Wrap(errs.ErrKindInvalidInput, "invalid "+name+" parameter", err)
	}
	return b, nil
}

func setObjectHeaders(w http.ResponseWriter, info *filestore.ObjectInfo) {
	h := w.Header()
	if info.ContentType != "" {
		h.Set("Content-Type", info.ContentType)
	}
	h.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if info.ETag != "" {
		h.Set("ETag", `"`+info.ETag+`"`)
	}
	if !info.LastModified.IsZero() {
		h.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
}
