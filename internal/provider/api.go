package provider

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

	"golang.org/x/oauth2"

	"github.com/sakif/unify/internal/metrics"
	"github.com/sakif/unify/internal/model"
)

// maxBodySize caps how much of a provider reply is read.
const maxBodySize = 8 << 20

// DefaultTimeout bounds every provider call when no client is supplied.
const DefaultTimeout = 15 * time.Second

// API sends requests to one provider and classifies every reply before any
// field of it is decoded.
type API struct {
	provider model.Provider
	client   *http.Client
	classify Classifier
}

// NewAPI creates an API for p. A nil client gets a client with
// DefaultTimeout.
func NewAPI(p model.Provider, client *http.Client, classify Classifier) *API {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &API{provider: p, client: client, classify: classify}
}

// HTTPClient returns the base client. OAuth libraries get it through their
// context key so token calls share the same transport and timeout.
func (a *API) HTTPClient() *http.Client {
	return a.client
}

// Get fetches rawURL and decodes the JSON reply into out (when non-nil).
// c overrides the base client, e.g. with an OAuth1-signing client.
func (a *API) Get(ctx context.Context, c *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", a.provider, Redact(err))
	}
	return a.Do(c, req, out)
}

// Send issues method against rawURL with form as a urlencoded body (nil for
// no body).
func (a *API) Send(ctx context.Context, c *http.Client, method, rawURL string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", a.provider, Redact(err))
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return a.Do(c, req, out)
}

// Do sends req and classifies the outcome. Clients that carry no timeout of
// their own (OAuth wrappers) inherit the base client's through the request
// context.
func (a *API) Do(c *http.Client, req *http.Request, out any) error {
	if c == nil {
		c = a.client
	}
	if c.Timeout == 0 && a.client.Timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), a.client.Timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		a.observe(metrics.OutcomeTransportError, start)
		return a.classify(err, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		a.observe(metrics.OutcomeTransportError, start)
		return a.classify(err, nil)
	}

	if perr := a.classify(nil, &Response{Status: resp.StatusCode, Body: body}); perr != nil {
		a.observe(metrics.OutcomeProviderError, start)
		return perr
	}
	a.observe(metrics.OutcomeOK, start)

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decoding %s: %w", a.provider, req.URL.Path, err)
	}
	return nil
}

// TokenError classifies an error returned by an OAuth library during a
// token exchange or refresh.
func (a *API) TokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if perr := a.classify(nil, &Response{Status: re.Response.StatusCode, Body: re.Body}); perr != nil {
			return perr
		}
		return StatusError(a.provider, re.Response.StatusCode)
	}
	if IsTransport(err) {
		return a.classify(err, nil)
	}
	return InvalidResponse(a.provider, "token response", err)
}

func (a *API) observe(outcome string, start time.Time) {
	metrics.ObserveProviderCall(string(a.provider), outcome, time.Since(start))
}
