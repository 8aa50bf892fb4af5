package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"patterndraw/internal/capture"
	"patterndraw/internal/ratelimit"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestClientSearchByPattern(t *testing.T) {
	var got PatternRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stocks/search-by-pattern" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("Missing request id")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[{"symbol":"SASA","similarity_score":0.82,"start_date":"2023-01-02","end_date":"2023-03-01","peaks_troughs":[]}]`))
	}))
	defer srv.Close()

	token := signedToken(t, time.Now().Add(time.Hour))
	c := NewClient(srv.URL+"/api/", token, ratelimit.NewLimiter("test", 600))
	results, err := c.SearchByPattern(context.Background(), PatternRequest{
		Symbol:   "THYAO",
		Points:   []PatternPoint{{Time: 1, Price: 100, Type: capture.Trough}, {Time: 2, Price: 150, Type: capture.Peak}},
		Criteria: map[string]float64{"rise_1_min": 35, "rise_1_max": 65},
		Limit:    20,
	})
	if err != nil {
		t.Fatalf("SearchByPattern failed: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "SASA" || results[0].SimilarityScore != 0.82 {
		t.Errorf("Unexpected results %+v", results)
	}
	if auth != "Bearer "+token {
		t.Errorf("Unexpected auth header %q", auth)
	}
	if got.Points[1].Type != capture.Peak || got.Criteria["rise_1_max"] != 65 {
		t.Errorf("Unexpected request body %+v", got)
	}
}

func TestClientEndpointOverride(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	c.SetEndpoints(Endpoints{FindSimilar: "/v2/similar"})
	results, err := c.FindSimilar(context.Background(), SimilarRequest{Symbol: "THYAO"})
	if err != nil {
		t.Fatal(err)
	}
	if path != "/v2/similar" || len(results) != 0 {
		t.Errorf("path = %s, results = %v", path, results)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		detail    string
		retryable bool
	}{
		{"detail string", http.StatusNotFound, `{"detail":"No data for XYZ"}`, "No data for XYZ", false},
		{"server error", http.StatusBadGateway, `upstream down`, "upstream down", true},
		{"rate limited", http.StatusTooManyRequests, ``, "rate limited", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			limiter := ratelimit.NewLimiter("test", 600)
			c := NewClient(srv.URL, "", limiter)
			_, err := c.FindSimilar(context.Background(), SimilarRequest{})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %v", err)
			}
			if apiErr.Status != tt.status || apiErr.Detail != tt.detail || apiErr.Retryable != tt.retryable {
				t.Errorf("Unexpected error %+v", apiErr)
			}
			if tt.status == http.StatusTooManyRequests && limiter.Backoff() != 500*time.Millisecond {
				t.Errorf("429 should double the backoff, got %s", limiter.Backoff())
			}
		})
	}
}

func TestClientBacksOffAfterRateLimit(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	limiter := ratelimit.NewLimiter("test", 600)
	c := NewClient(srv.URL, "", limiter)
	if _, err := c.FindSimilar(context.Background(), SimilarRequest{}); err == nil {
		t.Fatal("Expected a rate limit error")
	}

	status = http.StatusOK
	start := time.Now()
	if _, err := c.FindSimilar(context.Background(), SimilarRequest{}); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("Call after a 429 should wait out the backoff, took %v", elapsed)
	}
	if limiter.Backoff() != 250*time.Millisecond {
		t.Errorf("Success should reset the backoff, got %v", limiter.Backoff())
	}
}

func TestClientExpiredToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, signedToken(t, time.Now().Add(-time.Minute)), nil)
	if _, err := c.FindSimilar(context.Background(), SimilarRequest{}); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
	if calls != 0 {
		t.Error("Expired token must not reach the server")
	}

	// opaque tokens are passed through
	c = NewClient(srv.URL, "not-a-jwt", nil)
	if _, err := c.FindSimilar(context.Background(), SimilarRequest{}); err != nil {
		t.Errorf("Opaque token should be sent, got %v", err)
	}
}

func TestClientCandlesAndSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stocks/THYAO/candlestick":
			if r.URL.Query().Get("interval") != "1h" || r.URL.Query().Get("period") != "60d" {
				t.Errorf("Unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"symbol":"THYAO","interval":"1h","period":"60d","candles":[{"time":1,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10}]}`))
		case SymbolsPath:
			w.Write([]byte(`{"symbols":["THYAO","GARAN"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	series, err := c.Candles(context.Background(), "THYAO", "1h", "60d")
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Candles) != 1 || series.Candles[0].Close != 1.5 {
		t.Errorf("Unexpected series %+v", series)
	}

	syms, err := c.Symbols(context.Background())
	if err != nil || len(syms) != 2 {
		t.Errorf("Symbols = %v, %v", syms, err)
	}
}

func waypoint(ts int64, price float64, k capture.Kind, seq int) capture.Waypoint {
	return capture.Waypoint{Time: ts, Price: decimal.NewFromFloat(price), Kind: k, Seq: seq}
}
