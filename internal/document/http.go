// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package document

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/lectern/internal/platform/constants"
	"github.com/taibuivan/lectern/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/lectern/internal/platform/request"
	"github.com/taibuivan/lectern/internal/platform/respond"
	"github.com/taibuivan/lectern/internal/platform/validate"
	"github.com/taibuivan/lectern/internal/stream"
)

// ServePath is where documents are streamed from.
const ServePath = "/serve"

// Handler exposes the gateway over HTTP.
type Handler struct {
	gateway *Gateway
}

// NewHandler creates a document handler.
func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// RegisterRoutes mounts the token endpoint under /api/v1/documents.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/{id}/tokens", handler.issueToken)
}

// TokenResponse is the payload of a minted token.
type TokenResponse struct {
	Token      string    `json:"token"`
	ResourceID int64     `json:"resource_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	URL        string    `json:"url"`
}

/*
Serve handles GET /serve?resourceId=<id>&token=<opaque>.

It is mounted for every method so that non-GET requests get a proper 405.
*/
func (handler *Handler) Serve(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	// 1. Validate
	if err := requestutil.RequireMethod(writer, request, http.MethodGet); err != nil {
		respond.Error(writer, request, err)
		return
	}

	check := &validate.Validator{}
	resourceID := check.ID("resourceId", requestutil.Query(request, "resourceId"))
	token := requestutil.Query(request, "token")
	check.Required("token", token)
	if err := check.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if trace := ctxutil.GetTrace(ctx); trace != nil {
		trace.ResourceID = resourceID
	}

	// 2-4. Lookup, Authorize, Locate
	delivery, err := handler.gateway.Open(ctx, resourceID, token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// 5. Serve
	header := writer.Header()
	header.Set(constants.HeaderNoSniff, "nosniff")
	header.Set(constants.HeaderFrameOptions, "SAMEORIGIN")
	header.Set(constants.HeaderCSP, "frame-ancestors 'self'")
	header.Set(constants.HeaderReferrerPolicy, "no-referrer")
	header.Set(constants.HeaderCacheControl, "private, no-store")
	header.Set(constants.HeaderContentType, delivery.Resource.ContentType())
	header.Set(constants.HeaderDisposition, fmt.Sprintf("inline; filename=%q", delivery.Resource.Filename()))

	if err := stream.Serve(writer, request, delivery, delivery.Size()); err != nil {
		if errors.Is(err, stream.ErrAborted) {
			ctxutil.GetLogger(ctx).InfoContext(ctx, "document_stream_aborted",
				slog.Int64("resource_id", resourceID),
				slog.String("error", err.Error()),
			)
			return
		}

		// Nothing was written yet, so the content headers go
		header.Del(constants.HeaderContentType)
		header.Del(constants.HeaderDisposition)
		respond.Error(writer, request, err)
		return
	}

	ctxutil.GetLogger(ctx).DebugContext(ctx, "document_served",
		slog.Int64("resource_id", resourceID),
		slog.Int64("size", delivery.Size()),
	)
}

func (handler *Handler) issueToken(writer http.ResponseWriter, request *http.Request) {
	resourceID, err := requestutil.ParamID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.gateway.IssueToken(request.Context(), resourceID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, TokenResponse{
		Token:      token.Value,
		ResourceID: token.ResourceID,
		ExpiresAt:  token.ExpiresAt,
		URL:        ServeURL(token.ResourceID, token.Value),
	})
}

// ServeURL builds the relative serve URL for a resource and token.
func ServeURL(resourceID int64, token string) string {
	query := url.Values{}
	query.Set("resourceId", strconv.FormatInt(resourceID, 10))
	query.Set("token", token)
	return ServePath + "?" + query.Encode()
}
