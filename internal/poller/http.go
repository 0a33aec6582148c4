package poller

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"
)

// HTTPSource implements Source against the reservation HTTP API.
type HTTPSource struct {
    BaseURL string
    Client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
    return &HTTPSource{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSource) Status(ctx context.Context, id string) (Snapshot, error) {
    return s.do(ctx, http.MethodGet, "/v1/reservations/"+url.PathEscape(id)+"/status")
}

func (s *HTTPSource) Verify(ctx context.Context, id string) (Snapshot, error) {
    return s.do(ctx, http.MethodPost, "/v1/reservations/"+url.PathEscape(id)+"/verify")
}

func (s *HTTPSource) do(ctx context.Context, method, path string) (Snapshot, error) {
    req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, nil)
    if err != nil {
        return Snapshot{}, err
    }
    req.Header.Set("Accept", "application/json")
    client := s.Client
    if client == nil {
        client = http.DefaultClient
    }
    resp, err := client.Do(req)
    if err != nil {
        return Snapshot{}, err
    }
    defer resp.Body.Close()
    if resp.StatusCode/100 != 2 {
        body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
        return Snapshot{}, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
    }
    var snap Snapshot
    if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
        return Snapshot{}, fmt.Errorf("%s %s: decode: %w", method, path, err)
    }
    return snap, nil
}
