package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
)

type Envelope map[string]any

const maxRequestBodySize = 1 << 20

// ReadJSON decodes a single JSON object into v. Any decoding problem is returned as
// a MALFORMED_JSON error whose cause explains what was wrong.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errorx.NewMalformedJSON().WithCause(describeDecodeError(err))
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errorx.NewMalformedJSON().WithCause(errors.New("body must only contain a single JSON value"))
	}

	return nil
}

func describeDecodeError(err error) error {
	var (
		syntaxError        *json.SyntaxError
		unmarshalTypeError *json.UnmarshalTypeError
		maxBytesError      *http.MaxBytesError
	)

	switch {
	case errors.As(err, &syntaxError):
		return fmt.Errorf("badly-formed JSON at character %d: %w", syntaxError.Offset, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("body contains badly-formed JSON: %w", err)
	case errors.As(err, &unmarshalTypeError):
		if unmarshalTypeError.Field != "" {
			return fmt.Errorf("incorrect JSON type for field %q: %w", unmarshalTypeError.Field, err)
		}
		return fmt.Errorf("incorrect JSON type at character %d: %w", unmarshalTypeError.Offset, err)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("body must not be empty: %w", err)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return fmt.Errorf("body contains unknown field %s: %w", strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	case errors.As(err, &maxBytesError):
		return fmt.Errorf("body must not be larger than %d bytes: %w", maxBytesError.Limit, err)
	default:
		return err
	}
}

func WriteJSON(w http.ResponseWriter, status int, data Envelope, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	maps.Copy(w.Header(), headers)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func Success(w http.ResponseWriter, r *http.Request, status int, body Envelope) {
	if body == nil {
		body = make(Envelope, 1)
	}
	body["success"] = true

	if err := WriteJSON(w, status, body, nil); err != nil {
		logger.ErrorContext(r.Context(), "failed to write success response", "status", status, "error", err)
	}
}
