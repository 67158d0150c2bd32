package photon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nir0k/mediageo/internal/location"
)

func newTestClient(t *testing.T, server *httptest.Server, props Properties) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    server.URL,
		Lang:       "en",
		RateLimit:  1000,
		Properties: props,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestReverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lat") != "52.52" || q.Get("lon") != "13.405" {
			t.Errorf("unexpected coordinates: %s,%s", q.Get("lat"), q.Get("lon"))
		}
		if q.Get("lang") != "en" {
			t.Errorf("unexpected lang: %s", q.Get("lang"))
		}
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"properties":{"country":"Germany","city":"Berlin","countrycode":"de"}}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server, Properties{}).Reverse(context.Background(), location.Coordinate{Latitude: 52.52, Longitude: 13.405})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := location.Place{Country: "Germany", City: "Berlin", CountryCode: "DE"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReverseFallsBackToTown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[{"properties":{"country":"Norway","town":"Tromsø"}}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server, Properties{}).Reverse(context.Background(), location.Coordinate{Latitude: 69.65, Longitude: 18.96})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.City != "Tromsø" || got.Country != "Norway" || got.CountryCode != "" {
		t.Errorf("unexpected place %+v", got)
	}
}

func TestReverseCustomProperties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[{"properties":{"land":"Austria","ort":"Wien","iso":"at"}}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, Properties{Country: "land", City: "ort", CountryCode: "iso"})
	got, err := c.Reverse(context.Background(), location.Coordinate{Latitude: 48.2, Longitude: 16.37})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (location.Place{Country: "Austria", City: "Wien", CountryCode: "AT"}) {
		t.Errorf("unexpected place %+v", got)
	}
}

func TestReverseCachesRoundedCoordinates(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"features":[{"properties":{"country":"Spain","city":"Madrid","countrycode":"ES"}}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, Properties{})
	for _, coord := range []location.Coordinate{
		{Latitude: 40.41680, Longitude: -3.70380},
		{Latitude: 40.41681, Longitude: -3.70379},
	} {
		if _, err := c.Reverse(context.Background(), coord); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if requests != 1 {
		t.Errorf("expected 1 request, got %d", requests)
	}
}

func TestReverseNoFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server, Properties{}).Reverse(context.Background(), location.Coordinate{Latitude: -40, Longitude: -120})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("expected empty place, got %+v", got)
	}
}

func TestReverseHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(t, server, Properties{}).Reverse(context.Background(), location.Coordinate{Latitude: 1, Longitude: 1})
	if !errors.Is(err, location.ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestReverseRateLimitDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer server.Close()

	c, err := New(Options{BaseURL: server.URL, RateLimit: 0.001, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Reverse(context.Background(), location.Coordinate{Latitude: 1, Longitude: 1}); err != nil {
		t.Fatalf("first lookup: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Reverse(ctx, location.Coordinate{Latitude: 2, Longitude: 2})
	if !errors.Is(err, location.ErrTransport) || !location.IsTimeout(err) {
		t.Errorf("throttled lookup past its deadline should be a transport timeout, got %v", err)
	}
}

func TestReverseCancelledWaitIsNotTimeout(t *testing.T) {
	c, err := New(Options{BaseURL: "http://photon.local", RateLimit: 0.001})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Reverse(ctx, location.Coordinate{Latitude: 3, Longitude: 3})
	if err == nil || location.IsTimeout(err) {
		t.Errorf("cancelled lookup should fail without a timeout label, got %v", err)
	}
}
