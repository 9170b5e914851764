// Package httpapi serves the public capability download route and the
// operational endpoints of the vault.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/logging"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

const (
	msgInvalidLink = "invalid or expired download link"
	msgIntegrity   = "file failed integrity check"
	msgInternal    = "internal server error"
)

// Downloader redeems a capability token and returns the decrypted file.
type Downloader interface {
	DownloadByToken(ctx context.Context, token string) (*models.Download, error)
}

type Handler struct {
	files  Downloader
	logger logging.Logger
}

func NewHandler(files Downloader, logger logging.Logger) *Handler {
	return &Handler{files: files, logger: logger.With("module", "httpapi")}
}

// Routes mounts the download route, /healthz and, when gatherer is not nil, /metrics.
func Routes(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/download/{token}", h.Download)
	r.Get("/healthz", h.Health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Download streams the file behind a single-use token. The token is consumed
// by the first request whatever the outcome.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	d, err := h.files.DownloadByToken(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrExpired), errors.Is(err, common.ErrorNotFound):
			http.Error(w, msgInvalidLink, http.StatusNotFound)
		case errors.Is(err, common.ErrIntegrity), errors.Is(err, common.ErrFormat):
			h.logger.Error(ctx, "link download failed integrity check", "error", err)
			http.Error(w, msgIntegrity, http.StatusInternalServerError)
		default:
			h.logger.Error(ctx, "link download failed", "error", err)
			http.Error(w, msgInternal, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Disposition", contentDisposition(d.OriginalName))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(d.Data); err != nil {
		h.logger.Warn(ctx, "failed to write download body", "error", err)
	}
}

// contentDisposition builds an attachment header with an ASCII fallback name
// and the exact UTF-8 name in filename*.
func contentDisposition(name string) string {
	fallback := sanitizeFilename(name)
	v := `attachment; filename="` + fallback + `"`
	if name != "" && fallback != name {
		v += "; filename*=UTF-8''" + extValue(name)
	}
	return v
}

// extValue percent-encodes every byte outside the RFC 5987 attr-char set.
func extValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

func sanitizeFilename(name string) string {
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '"' || r == ';':
			b.WriteByte('_')
		case r < 0x20 || r == 0x7f || r > 0x7e:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "download"
	}
	return b.String()
}
