// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/internal/auth"
	"github.com/bestwishes/bestwishes/internal/upload"
	"github.com/bestwishes/bestwishes/pkg/errutil"
)

// CodeMalformedBody reports a request body that could not be decoded.
const CodeMalformedBody = "MALFORMED_BODY"

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.DebugContext(ctx, "response write failed", "error", err)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch errutil.Code(err) {
	case auth.CodeValidation, auth.CodeInvalidID, auth.CodeInvalidToken,
		auth.CodeWeakPassword, auth.CodeSamePassword, CodeMalformedBody:
		return http.StatusBadRequest
	case auth.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case auth.CodeNotVerified:
		return http.StatusForbidden
	case auth.CodeNotFound:
		return http.StatusNotFound
	case auth.CodeDuplicateEmail, auth.CodeAlreadyVerified, auth.CodeAlreadySeller:
		return http.StatusConflict
	case auth.CodeUploadRejected:
		switch reason(err) {
		case upload.ReasonSize:
			return http.StatusRequestEntityTooLarge
		case upload.ReasonType:
			return http.StatusUnsupportedMediaType
		default:
			return http.StatusBadRequest
		}
	default:
		return http.StatusInternalServerError
	}
}

func reason(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	r, _ := oopsErr.Context()["reason"].(string)
	return r
}

// writeError renders err as the failure envelope. Unclassified errors are
// logged and reported without detail.
func writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(ctx, logger, "request failed", err)
		writeJSON(ctx, logger, w, status, errorBody{
			Error: "internal server error",
			Code:  codeOr(err, auth.CodeStorageFailure),
		})
		return
	}

	body := errorBody{Error: err.Error(), Code: errutil.Code(err)}
	if oopsErr, ok := oops.AsOops(err); ok {
		body.Error = oopsErr.Error()
		if fields, ok := oopsErr.Context()["fields"].(map[string]string); ok {
			body.Fields = fields
		}
	}
	writeJSON(ctx, logger, w, status, body)
}

func codeOr(err error, fallback string) string {
	if c := errutil.Code(err); c != "" {
		return c
	}
	return fallback
}

// decodeJSON reads a JSON object into dst. An empty body leaves dst zero.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code(auth.CodeUploadRejected).
				With("reason", upload.ReasonSize).
				With("max_bytes", tooLarge.Limit).
				Errorf("request body too large")
		}
		return oops.Code(CodeMalformedBody).Wrap(err)
	}
	return nil
}
