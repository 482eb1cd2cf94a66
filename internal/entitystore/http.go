package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a host response is read.
const maxResponseBytes = 4 << 20

// HTTPStore reads entities from the host application's read API:
//
//	GET {base}/{kind}/{id}                    -> entity object, 404 when missing
//	GET {base}/{kind}/{id}/related/{relation} -> array of ids
//	GET {base}/{kind}?{field}={value}         -> array of objects with "id"
//	GET {base}/{kind}?ids=1,2,3               -> object keyed by id
type HTTPStore struct {
	baseURL string
	client  *http.Client
	token   string
}

// NewHTTPStore creates a store against baseURL. token, when set, is sent as
// a bearer token.
func NewHTTPStore(baseURL string, timeout time.Duration, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		token:   token,
	}
}

// get performs a GET and decodes the JSON body into out. A 404 maps to
// ErrNotFound.
func (s *HTTPStore) get(ctx context.Context, path string, query url.Values, out any) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building entity store request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling entity store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("entity store %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding entity store response: %w", err)
	}
	return nil
}

// Read implements Store.
func (s *HTTPStore) Read(ctx context.Context, kind, id string) (map[string]any, error) {
	var state map[string]any
	path := "/" + url.PathEscape(kind) + "/" + url.PathEscape(id)
	if err := s.get(ctx, path, nil, &state); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNotFound
	}
	return state, nil
}

// ReadMany implements BatchReader.
func (s *HTTPStore) ReadMany(ctx context.Context, kind string, ids []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	if len(ids) == 0 {
		return out, nil
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	if err := s.get(ctx, "/"+url.PathEscape(kind), q, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[string]map[string]any{}, nil
		}
		return nil, err
	}
	return out, nil
}

// ReadRelated implements Store.
func (s *HTTPStore) ReadRelated(ctx context.Context, kind, id, relation string) ([]string, error) {
	var raw []any
	path := "/" + url.PathEscape(kind) + "/" + url.PathEscape(id) + "/related/" + url.PathEscape(relation)
	if err := s.get(ctx, path, nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return toStrings(raw), nil
}

// Lookup implements Store.
func (s *HTTPStore) Lookup(ctx context.Context, kind, field, value string) (string, error) {
	var matches []map[string]any
	q := url.Values{field: {value}}
	if err := s.get(ctx, "/"+url.PathEscape(kind), q, &matches); err != nil {
		return "", err
	}
	for _, m := range matches {
		if id := IDString(m["id"]); id != "" {
			return id, nil
		}
	}
	return "", ErrNotFound
}
