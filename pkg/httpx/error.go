package httpx

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ARUMANDESU/validation"
	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/i18nx"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

var logger = otelslog.NewLogger("insightbox/pkg/httpx")

var localeFiles = []string{
	"locales/en.toml",
	"locales/kk.toml",
	"locales/ru.toml",
	"locales/validation.en.toml",
	"locales/validation.kk.toml",
	"locales/validation.ru.toml",
}

type ErrorHandler struct {
	bundle *i18n.Bundle
}

// NewErrorHandler loads the message files from fsys, which must contain a locales directory.
func NewErrorHandler(fsys fs.FS) (*ErrorHandler, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, path := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(fsys, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return &ErrorHandler{bundle: bundle}, nil
}

// Localizer picks the best match for an Accept-Language header, falling back to English.
func (h *ErrorHandler) Localizer(acceptLanguage string) *i18n.Localizer {
	return i18n.NewLocalizer(h.bundle, acceptLanguage, language.English.String())
}

// HandleError logs err, records it on span and writes the localized error response.
// msg describes the failed operation in logs and traces and is never sent to the client.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, span trace.Span, err error, msg string) {
	ctx := r.Context()
	localizer := h.Localizer(r.Header.Get("Accept-Language"))

	var appErr *errorx.I18nError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatusCode()
		logByStatus(r, status, msg, err)
		if status >= http.StatusInternalServerError {
			otelx.RecordSpanError(span, err, msg)
		}

		var headers http.Header
		if retry, ok := appErr.MessageArgs[i18nx.ArgRetryAfter]; ok {
			headers = http.Header{"Retry-After": []string{fmt.Sprint(retry)}}
		}
		writeError(w, r, status, Envelope{
			"code":    appErr.Code,
			"message": appErr.Localize(localizer),
		}, headers)
		return
	}

	var valErrs validation.Errors
	if errors.As(err, &valErrs) {
		logByStatus(r, http.StatusBadRequest, msg, err)
		fields := make(map[string]string, len(valErrs))
		for field, fieldErr := range valErrs {
			fields[field] = localizeValidation(localizer, fieldErr)
		}
		writeError(w, r, http.StatusBadRequest, Envelope{
			"code":    errorx.CodeValidationFailed,
			"message": errorx.NewValidationFailed().Localize(localizer),
			"errors":  fields,
		}, nil)
		return
	}

	var valErr validation.Error
	if errors.As(err, &valErr) {
		logByStatus(r, http.StatusBadRequest, msg, err)
		writeError(w, r, http.StatusBadRequest, Envelope{
			"code":    errorx.CodeValidationFailed,
			"message": localizeValidation(localizer, valErr),
		}, nil)
		return
	}

	logger.ErrorContext(ctx, msg, "error", err, "path", r.URL.Path)
	otelx.RecordSpanError(span, err, msg)
	internalErr := errorx.NewInternalError()
	writeError(w, r, internalErr.HTTPStatusCode(), Envelope{
		"code":    internalErr.Code,
		"message": internalErr.Localize(localizer),
	}, nil)
}

func localizeValidation(localizer *i18n.Localizer, err error) string {
	var valErr validation.Error
	if !errors.As(err, &valErr) {
		return err.Error()
	}

	msg, lerr := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    valErr.Code(),
		TemplateData: valErr.Params(),
	})
	if lerr != nil || msg == "" {
		return valErr.Error()
	}
	return msg
}

func logByStatus(r *http.Request, status int, msg string, err error) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, msg,
		"error", err,
		"status", strconv.Itoa(status),
		"path", r.URL.Path,
	)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body Envelope, headers http.Header) {
	body["success"] = false
	if err := WriteJSON(w, status, body, headers); err != nil {
		logger.ErrorContext(r.Context(), "failed to write error response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
