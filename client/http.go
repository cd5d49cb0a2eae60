package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNoTokens       = errors.New("no tokens held")
	ErrRefreshDenied  = errors.New("refresh rejected, re-authentication required")
	ErrUnexpectedCode = errors.New("unexpected response status")
)

// HTTPRefreshFunc builds a RefreshFunc that calls the service's refresh
// endpoint with the token in the request body.
func HTTPRefreshFunc(baseURL string, httpClient *http.Client) RefreshFunc {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return func(ctx context.Context, refreshToken string) (*TokenPair, error) {
		body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/refresh", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusUnauthorized:
			return nil, ErrRefreshDenied
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
		}

		var payload struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode refresh response: %w", err)
		}

		return &TokenPair{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
		}, nil
	}
}
