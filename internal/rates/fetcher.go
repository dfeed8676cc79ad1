package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/hesapla-backend/internal/observability"
)

const (
	// DefaultURL is the central bank's daily bulletin.
	DefaultURL = "https://www.tcmb.gov.tr/kurlar/today.xml"
	// DefaultTimeout bounds one upstream call.
	DefaultTimeout = 8 * time.Second

	maxPayloadBytes = 2 << 20
)

// Fetcher scrapes the daily bulletin. Fetch never fails: every error
// degrades to the fallback snapshot.
type Fetcher struct {
	URL      string
	Client   *http.Client
	Timeout  time.Duration
	Fallback Fallback
	Now      func() time.Time
}

// NewFetcher returns a Fetcher for url using the default HTTP client.
func NewFetcher(url string, timeout time.Duration, fb Fallback) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		URL:      url,
		Client:   &http.Client{},
		Timeout:  timeout,
		Fallback: fb,
		Now:      time.Now,
	}
}

// Fetch returns a PRIMARY snapshot when the upstream supplies both rates,
// otherwise a FALLBACK snapshot stamped with the current time.
func (f *Fetcher) Fetch(ctx context.Context) Snapshot {
	ctx, span := observability.Tracer("rates").Start(ctx, "rates.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("rates.url", f.URL))

	now := f.now()
	s, err := f.fetchPrimary(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream unavailable")
		span.SetAttributes(attribute.String("rates.source", string(SourceFallback)))
		log.Warn().Err(err).Str("url", f.URL).Msg("rates: upstream unavailable, serving fallback")
		fetchTotal.WithLabelValues(string(SourceFallback)).Inc()
		return f.Fallback.Snapshot(now)
	}
	if s.Date == "" {
		s.Date = FormatDate(now)
	}
	s.FetchedAt = now.UTC()
	span.SetAttributes(attribute.String("rates.source", string(SourcePrimary)))
	fetchTotal.WithLabelValues(string(SourcePrimary)).Inc()
	return s
}

func (f *Fetcher) fetchPrimary(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Accept", "application/xml, text/xml;q=0.9, */*;q=0.1")
	req.Header.Set("User-Agent", "hesapla-backend/rates")

	resp, err := f.client().Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Snapshot{}, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Snapshot{}, err
	}
	return ParseToday(string(body))
}

func (f *Fetcher) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func (f *Fetcher) timeout() time.Duration {
	if f.Timeout <= 0 {
		return DefaultTimeout
	}
	return f.Timeout
}

func (f *Fetcher) client() *http.Client {
	if f.Client == nil {
		return http.DefaultClient
	}
	return f.Client
}
