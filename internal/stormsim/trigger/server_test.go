package trigger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	requests []Request
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, request Request) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.requests = append(p.requests, request)
	return request.NumSimulations, nil
}

func TestServerPublishesPostedRequests(t *testing.T) {
	publisher := &fakePublisher{}
	server := NewServer(publisher)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"num_sims": 5}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Triggered 5 hail simulations")
	require.Len(t, publisher.requests, 1)
	assert.Equal(t, 5, publisher.requests[0].NumSimulations)
}

func TestServerAnswersHealthChecks(t *testing.T) {
	publisher := &fakePublisher{}
	server := NewServer(publisher)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Empty(t, publisher.requests)
}

func TestServerIgnoresMalformedBodies(t *testing.T) {
	publisher := &fakePublisher{}
	server := NewServer(publisher)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`)))

	// malformed requests are dropped, not retried by the caller
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.requests)
}

func TestServerReportsPublishFailures(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("pulsar down")}
	server := NewServer(publisher)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
