package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"patterndraw/internal/search"
	"patterndraw/pkg/model"
)

type stubProvider struct {
	name      string
	available bool
	candles   []model.Candle
	err       error
	calls     int
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return s.available }
func (s *stubProvider) RateLimit() int    { return 10 }

func (s *stubProvider) GetCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func TestNormalizeRequest(t *testing.T) {
	tests := []struct {
		interval, period         string
		wantInterval, wantPeriod string
	}{
		{"1d", "2y", "1d", "2y"},
		{"1h", "2y", "1h", "60d"},
		{"4h", "", "4h", "60d"},
		{"15m", "1y", "1d", "1y"},
		{"1wk", "10y", "1wk", "2y"},
	}

	for _, tt := range tests {
		gotI, gotP := NormalizeRequest(tt.interval, tt.period)
		if gotI != tt.wantInterval || gotP != tt.wantPeriod {
			t.Errorf("NormalizeRequest(%q, %q) = %q, %q; want %q, %q",
				tt.interval, tt.period, gotI, gotP, tt.wantInterval, tt.wantPeriod)
		}
	}
}

func TestFallbackProvider(t *testing.T) {
	bad := &stubProvider{name: "bad", available: true, err: errors.New("down")}
	off := &stubProvider{name: "off", available: false}
	good := &stubProvider{name: "good", available: true, candles: []model.Candle{{Time: 1}}}

	f := NewFallbackProvider(bad, off, good)
	if len(f.Providers()) != 2 {
		t.Errorf("Unavailable providers should be filtered, got %d", len(f.Providers()))
	}

	candles, err := f.GetCandles(context.Background(), "THYAO", "1d", "2y")
	if err != nil {
		t.Fatalf("Expected fallback to succeed: %v", err)
	}
	if len(candles) != 1 || bad.calls != 1 || good.calls != 1 {
		t.Errorf("Unexpected calls: bad=%d good=%d", bad.calls, good.calls)
	}
	if off.calls != 0 {
		t.Error("Unavailable provider should not be called")
	}
}

func TestFallbackProviderAllFail(t *testing.T) {
	f := NewFallbackProvider(
		&stubProvider{name: "a", available: true, err: errors.New("a down")},
		&stubProvider{name: "b", available: true, err: errors.New("b down")},
	)
	_, err := f.GetCandles(context.Background(), "THYAO", "1d", "2y")
	if err == nil || err.Error() != "b down" {
		t.Errorf("Expected last error, got %v", err)
	}

	if _, err := NewFallbackProvider().GetCandles(context.Background(), "X", "1d", "2y"); err == nil {
		t.Error("Empty fallback should fail")
	}
}

type memStore struct {
	candles map[string][]model.Candle
	at      time.Time
	saves   int
}

func (m *memStore) LoadCandles(ctx context.Context, symbol, interval, period string) ([]model.Candle, time.Time, error) {
	return m.candles[cacheKey(symbol, interval, period)], m.at, nil
}

func (m *memStore) SaveCandles(ctx context.Context, symbol, interval, period string, candles []model.Candle) error {
	m.saves++
	m.candles[cacheKey(symbol, interval, period)] = candles
	m.at = time.Now()
	return nil
}

func TestCachingProvider(t *testing.T) {
	inner := &stubProvider{name: "inner", available: true, candles: []model.Candle{{Time: 1}, {Time: 2}}}
	st := &memStore{candles: make(map[string][]model.Candle)}
	p := NewCachingProvider(inner, st, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.GetCandles(ctx, "SASA", "1d", "2y"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected one upstream call, got %d", inner.calls)
	}
	if st.saves != 1 {
		t.Errorf("Expected one store write, got %d", st.saves)
	}

	if _, err := p.GetCandles(ctx, "SASA", "1wk", "5y"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("A different interval should miss the cache, got %d calls", inner.calls)
	}

	// a fresh process reads through the store
	p2 := NewCachingProvider(inner, st, time.Hour)
	if _, err := p2.GetCandles(ctx, "SASA", "1d", "2y"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("Store hit should not reach upstream, got %d calls", inner.calls)
	}
}

func TestCachingProviderExpiry(t *testing.T) {
	inner := &stubProvider{name: "inner", available: true, candles: []model.Candle{{Time: 1}}}
	p := NewCachingProvider(inner, nil, time.Minute)
	now := time.Unix(1700000000, 0)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	p.GetCandles(ctx, "AKBNK", "1d", "2y")
	now = now.Add(2 * time.Minute)
	p.GetCandles(ctx, "AKBNK", "1d", "2y")
	if inner.calls != 2 {
		t.Errorf("Expired entry should refetch, got %d calls", inner.calls)
	}

	p.Invalidate("AKBNK")
	if p.Len() != 0 {
		t.Errorf("Invalidate should drop entries, %d left", p.Len())
	}
}

func TestYahooProvider(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"THYAO.IS"},
			"timestamp":[1704067200,1704153600,1704240000],
			"indicators":{"quote":[{
				"open":[100.123,null,102],
				"high":[101.456,103,104.999],
				"low":[99.001,100,101],
				"close":[100.5,102,103.333],
				"volume":[1000,null,3000]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(nil, 600)
	p.SetBaseURL(srv.URL)

	candles, err := p.GetCandles(context.Background(), "thyao", "1d", "2y")
	if err != nil {
		t.Fatalf("GetCandles failed: %v", err)
	}
	if gotPath != "/THYAO.IS" {
		t.Errorf("Expected ticker path /THYAO.IS, got %s", gotPath)
	}
	if !strings.Contains(gotQuery, "range=2y") || !strings.Contains(gotQuery, "interval=1d") {
		t.Errorf("Unexpected query %s", gotQuery)
	}
	if len(candles) != 2 {
		t.Fatalf("Row with a null price should be skipped, got %d candles", len(candles))
	}
	if candles[0].Open != 100.12 || candles[1].High != 105 || candles[1].Close != 103.33 {
		t.Errorf("Prices should be rounded to 2 decimals, got %+v", candles)
	}
	if candles[1].Volume != 3000 {
		t.Errorf("Expected volume 3000, got %d", candles[1].Volume)
	}
}

func TestYahooProviderErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(nil, 600)
	p.SetBaseURL(srv.URL)

	_, err := p.GetCandles(context.Background(), "SASA", "1d", "2y")
	var pe *ProviderError
	if !errors.As(err, &pe) || !pe.Retryable {
		t.Errorf("429 should be a retryable provider error, got %v", err)
	}

	status = http.StatusOK
	_, err = p.GetCandles(context.Background(), "SASA", "1d", "2y")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Empty result should be ErrNoData, got %v", err)
	}
}

func TestResample(t *testing.T) {
	base := int64(1704067200) // 00:00 UTC
	hour := int64(3600)
	in := []model.Candle{
		{Time: base, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1},
		{Time: base + hour, Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 2},
		{Time: base + 3*hour, Open: 11, High: 11.5, Low: 8, Close: 9, Volume: 3},
		{Time: base + 4*hour, Open: 9, High: 9.5, Low: 8.5, Close: 9.2, Volume: 4},
	}

	out := Resample(in, 4*time.Hour)
	if len(out) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(out))
	}
	first := out[0]
	if first.Time != base || first.Open != 10 || first.High != 12 || first.Low != 8 || first.Close != 9 || first.Volume != 6 {
		t.Errorf("Unexpected first bucket %+v", first)
	}
	if out[1].Time != base+4*hour || out[1].Volume != 4 {
		t.Errorf("Unexpected second bucket %+v", out[1])
	}
	if in[0].Close != 10.5 {
		t.Error("Resample must not modify its input")
	}
}

type stubSource struct {
	series *model.CandleSeries
	err    error
	got    [3]string
}

func (s *stubSource) Candles(ctx context.Context, symbol, interval, period string) (*model.CandleSeries, error) {
	s.got = [3]string{symbol, interval, period}
	return s.series, s.err
}

func TestAPIProvider(t *testing.T) {
	src := &stubSource{series: &model.CandleSeries{Candles: []model.Candle{{Time: 1}}}}
	p := NewAPIProvider(src, 60)

	candles, err := p.GetCandles(context.Background(), "ASELS", "4h", "2y")
	if err != nil || len(candles) != 1 {
		t.Fatalf("Unexpected result %v, %v", candles, err)
	}
	if src.got != [3]string{"ASELS", "4h", "60d"} {
		t.Errorf("Request should be normalized, got %v", src.got)
	}

	src.err = &search.APIError{Endpoint: "/stocks/ASELS/candlestick", Status: 404, Detail: "No data for ASELS"}
	_, err = p.GetCandles(context.Background(), "ASELS", "1d", "2y")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("404 should map to ErrNoData, got %v", err)
	}

	if NewAPIProvider(nil, 60).IsAvailable() {
		t.Error("Provider without a source should be unavailable")
	}
}
