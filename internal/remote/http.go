package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/dmitrijs2005/dreamsync/internal/models"
)

// HTTPMirror talks JSON to the document collection API:
//
//	GET {base}/api/records?owner_id={owner}
//	PUT {base}/api/records/{id}
type HTTPMirror struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

// NewHTTPMirror builds a mirror client for the given base URL. tokens may
// be nil for unauthenticated endpoints (tests, local servers).
func NewHTTPMirror(baseURL string, timeout time.Duration, tokens TokenSource) *HTTPMirror {
	return &HTTPMirror{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// FetchAll returns the owner's documents.
func (m *HTTPMirror) FetchAll(ctx context.Context, ownerID string) ([]models.Document, error) {
	u := fmt.Sprintf("%s/api/records?owner_id=%s", m.baseURL, url.QueryEscape(ownerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(req); err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var docs []models.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode document list: %v", common.ErrRemoteData, err)
	}
	return docs, nil
}

// Put writes one document under its ID.
func (m *HTTPMirror) Put(ctx context.Context, doc *models.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/api/records/%s", m.baseURL, url.PathEscape(doc.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := m.authorize(req); err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func (m *HTTPMirror) authorize(req *http.Request) error {
	if m.tokens == nil {
		return nil
	}
	token, err := m.tokens.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: server returned %s", common.ErrUnauthorized, resp.Status)
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: server rejected payload: %s: %s", common.ErrRemoteData, resp.Status, string(b))
	default:
		return fmt.Errorf("%w: server returned %s", common.ErrNetwork, resp.Status)
	}
}

// wrapTransportError distinguishes "no connectivity at all" (unreachable
// network, DNS failure, timeout) from other transport failures so callers
// can defer silently instead of surfacing an alarming error. A refused or
// reset connection means the network is up and a host answered, so those
// stay ErrNetwork.
func wrapTransportError(err error) error {
	if isOffline(err) {
		return fmt.Errorf("%w: %v", common.ErrNoNetwork, err)
	}
	return fmt.Errorf("%w: %v", common.ErrNetwork, err)
}

func isOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		return errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(opErr.Err, syscall.ENETDOWN)
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
