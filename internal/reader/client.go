// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/taibuivan/lectern/internal/document"
	"github.com/taibuivan/lectern/internal/platform/respond"
	"github.com/taibuivan/lectern/internal/viewer"
)

// TokenClient mints access tokens for one document.
type TokenClient struct {
	base       *url.URL
	resourceID int64
	client     *http.Client
}

// NewTokenClient targets the server at serverURL.
func NewTokenClient(serverURL string, resourceID int64, client *http.Client) (*TokenClient, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("reader: parse server url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &TokenClient{base: base, resourceID: resourceID, client: client}, nil
}

/*
Mint asks the server for a fresh token.

Returns:
  - *document.TokenResponse: The token with its relative serve URL
  - error: *viewer.FetchError classified by status, or ctx.Err()
*/
func (client *TokenClient) Mint(ctx context.Context) (*document.TokenResponse, error) {
	endpoint := client.base.JoinPath("api", "v1", "documents", fmt.Sprint(client.resourceID), "tokens")

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return nil, &viewer.FetchError{Reason: viewer.ReasonUnknown, Err: err}
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &viewer.FetchError{Reason: viewer.ReasonNetwork, Err: fmt.Errorf("mint token: %w", err)}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		var envelope respond.ErrorEnvelope
		_ = json.NewDecoder(response.Body).Decode(&envelope)

		return nil, &viewer.FetchError{
			Reason:     viewer.StatusReason(response.StatusCode),
			StatusCode: response.StatusCode,
			Err:        fmt.Errorf("mint token: %s: %s", envelope.Code, envelope.Error),
		}
	}

	var envelope struct {
		Data document.TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return nil, &viewer.FetchError{Reason: viewer.ReasonNetwork, Err: fmt.Errorf("decode token: %w", err)}
	}

	return &envelope.Data, nil
}

// ResolveURL mints a token and returns the absolute serve URL for it.
func (client *TokenClient) ResolveURL(ctx context.Context) (string, error) {
	token, err := client.Mint(ctx)
	if err != nil {
		return "", err
	}

	serve, err := url.Parse(token.URL)
	if err != nil {
		return "", &viewer.FetchError{Reason: viewer.ReasonUnknown, Err: fmt.Errorf("parse serve url: %w", err)}
	}

	return client.base.ResolveReference(serve).String(), nil
}
