package fred

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"econdash/internal/model"
	"econdash/internal/providers"
)

const (
	defaultBaseURL          = "https://api.stlouisfed.org/"
	defaultObservationsPath = "fred/series/observations"
	defaultAPIKeyParam      = "api_key"
	defaultFileType         = "json"
	defaultPageLimit        = 100000
	defaultRateLimitPerSec  = 2
	defaultRateLimitBurst   = 4
	defaultTimeoutSeconds   = 30
	defaultUserAgent        = "econdash/0.1"
)

const providerName = "fred"

type Config struct {
	BaseURL          string
	ObservationsPath string
	APIKey           string
	APIKeyParam      string
	FileType         string
	PageLimit        int
	RateLimitPerSec  int
	RateLimitBurst   int
	Timeout          time.Duration
	UserAgent        string
	Logger           *zap.Logger
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rateLimiter
	logger  *zap.Logger
}

func New() (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig fills defaults and refuses to build a provider without an
// API key, so a missing credential surfaces before any request is made.
func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("fred: %w (set FRED_API_KEY)", providers.ErrMissingCredential)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if strings.TrimSpace(cfg.ObservationsPath) == "" {
		cfg.ObservationsPath = defaultObservationsPath
	}
	if cfg.APIKeyParam == "" {
		cfg.APIKeyParam = defaultAPIKeyParam
	}
	if cfg.FileType == "" {
		cfg.FileType = defaultFileType
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		logger:  logger.Named(providerName),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:          getenv("FRED_BASE_URL", defaultBaseURL),
		ObservationsPath: getenv("FRED_OBSERVATIONS_PATH", defaultObservationsPath),
		APIKey:           strings.TrimSpace(os.Getenv("FRED_API_KEY")),
		APIKeyParam:      getenv("FRED_API_KEY_PARAM", defaultAPIKeyParam),
		FileType:         getenv("FRED_FILE_TYPE", defaultFileType),
		UserAgent:        getenv("FRED_USER_AGENT", defaultUserAgent),
	}

	cfg.PageLimit = getenvInt("FRED_PAGE_LIMIT", defaultPageLimit)
	cfg.RateLimitPerSec = getenvInt("FRED_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec)
	cfg.RateLimitBurst = getenvInt("FRED_RATE_LIMIT_BURST", defaultRateLimitBurst)
	cfg.Timeout = time.Duration(getenvInt("FRED_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second

	return cfg, nil
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Close() {
	p.limiter.Stop()
}

// FetchObservations returns every observation of seriesID between start and
// end inclusive, following FRED's offset paging until count is reached.
func (p *Provider) FetchObservations(ctx context.Context, seriesID string, start, end time.Time) ([]model.Observation, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, errors.New("fred: series id is required")
	}

	observations := make([]model.Observation, 0)
	offset := 0
	for {
		params := url.Values{}
		params.Set("series_id", seriesID)
		params.Set("observation_start", start.Format(model.DateLayout))
		params.Set("observation_end", end.Format(model.DateLayout))
		params.Set("limit", strconv.Itoa(p.config.PageLimit))
		if offset > 0 {
			params.Set("offset", strconv.Itoa(offset))
		}

		var payload observationsResponse
		if err := p.doJSON(ctx, seriesID, p.config.ObservationsPath, params, &payload); err != nil {
			return nil, err
		}

		page, skipped := parseObservations(payload.Observations)
		if skipped > 0 {
			p.logger.Debug("skipped observations with unparseable dates",
				zap.String("series_id", seriesID),
				zap.Int("skipped", skipped),
			)
		}
		observations = append(observations, page...)

		offset += len(payload.Observations)
		if len(payload.Observations) == 0 || offset >= payload.Count {
			break
		}
	}

	p.logger.Info("fetched series",
		zap.String("series_id", seriesID),
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

type observationsResponse struct {
	Count        int                  `json:"count"`
	Offset       int                  `json:"offset"`
	Limit        int                  `json:"limit"`
	Observations []observationPayload `json:"observations"`
}

type observationPayload struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func parseObservations(rows []observationPayload) ([]model.Observation, int) {
	out := make([]model.Observation, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		date, err := time.Parse(model.DateLayout, strings.TrimSpace(row.Date))
		if err != nil {
			skipped++
			continue
		}
		out = append(out, model.Observation{
			Date:     date,
			RawValue: row.Value,
		})
	}
	return out, skipped
}

func (p *Provider) doJSON(ctx context.Context, seriesID, path string, params url.Values, dest any) error {
	body, err := p.doRequest(ctx, seriesID, path, params)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("fred: decode %s: %w", seriesID, err)
	}
	return nil
}

func (p *Provider) doRequest(ctx context.Context, seriesID, path string, params url.Values) ([]byte, error) {
	endpoint := p.buildURL(path, params)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fred: request %s: %w", seriesID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		p.logger.Error("request failed",
			zap.String("series_id", seriesID),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &providers.FetchError{
			Provider:   providerName,
			SeriesID:   seriesID,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

func (p *Provider) buildURL(path string, params url.Values) string {
	base := strings.TrimRight(p.config.BaseURL, "/")
	path = strings.TrimLeft(path, "/")
	endpoint := base + "/" + path

	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if p.config.APIKey != "" && p.config.APIKeyParam != "" {
		query.Set(p.config.APIKeyParam, p.config.APIKey)
	}
	if p.config.FileType != "" {
		query.Set("file_type", p.config.FileType)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

type rateLimiter struct {
	tokens chan struct{}
	ticker *time.Ticker
	done   chan struct{}
}

func newRateLimiter(ratePerSec, burst int) *rateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &rateLimiter{
		tokens: make(chan struct{}, burst),
		done:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		limiter.tokens <- struct{}{}
	}

	interval := time.Second / time.Duration(ratePerSec)
	if interval <= 0 {
		interval = time.Second
	}
	limiter.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-limiter.done:
				return
			case <-limiter.ticker.C:
				select {
				case limiter.tokens <- struct{}{}:
				default:
				}
			}
		}
	}()

	return limiter
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

func (l *rateLimiter) Stop() {
	if l == nil {
		return
	}
	select {
	case <-l.done:
	default:
		l.ticker.Stop()
		close(l.done)
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var _ providers.Provider = (*Provider)(nil)
