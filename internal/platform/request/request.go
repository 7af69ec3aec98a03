// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package requestutil reads identifiers and methods off incoming requests,
// reporting failures in the apperr vocabulary.
package requestutil

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/lectern/internal/platform/apperr"
	"github.com/taibuivan/lectern/internal/platform/constants"
	"github.com/taibuivan/lectern/internal/platform/validate"
)

// Query returns the trimmed query parameter name.
func Query(request *http.Request, name string) string {
	return strings.TrimSpace(request.URL.Query().Get(name))
}

/*
ParamID parses the chi path parameter name as a positive int64.

Returns:
  - int64: The identifier
  - error: VALIDATION_ERROR naming the parameter when missing or malformed
*/
func ParamID(request *http.Request, name string) (int64, error) {
	check := &validate.Validator{}
	id := check.ID(name, chi.URLParam(request, name))
	if err := check.Err(); err != nil {
		return 0, err
	}
	return id, nil
}

/*
RequireMethod rejects requests whose method is not in allowed with a 405,
advertising the allowed set in the Allow header.
*/
func RequireMethod(writer http.ResponseWriter, request *http.Request, allowed ...string) error {
	if slices.Contains(allowed, request.Method) {
		return nil
	}

	writer.Header().Set(constants.HeaderAllow, strings.Join(allowed, ", "))
	return apperr.MethodNotAllowed(request.Method)
}
