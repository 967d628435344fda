package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"golang.org/x/time/rate"
)

const (
	CelestrakBaseURL = "https://celestrak.org/NORAD/elements/gp.php"

	// DefaultRateLimit — минимальный интервал между запросами к Celestrak.
	DefaultRateLimit  = 2 * time.Second
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3

	userAgent = "satprop/1.0 (https://github.com/art-injener/satprop)"
	noGPData  = "No GP data found"
)

// Ошибки загрузки элементов.
var (
	ErrNotFound    = errors.New("elements not found")
	ErrRateLimited = errors.New("rate limited (429)")
	ErrServerError = errors.New("server error")
	ErrBadStatus   = errors.New("unexpected status")
)

// ElementFetcher загружает наборы TLE из внешнего источника.
type ElementFetcher interface {
	FetchByNoradID(ctx context.Context, noradID int) (*TLE, error)
	FetchGroup(ctx context.Context, group string) ([]*TLE, error)
}

// Группы Celestrak, которые принимает конфигурация каталога.
var celestrakGroups = []string{
	"stations", "visual", "active", "analyst", "tle-new",
	"weather", "noaa", "goes", "resource", "sarsat",
	"amateur", "cubesat", "science", "geodetic", "engineering", "education",
	"geo", "intelsat", "ses", "iridium-NEXT", "starlink", "oneweb", "orbcomm", "globalstar",
	"gps-ops", "glo-ops", "galileo", "beidou", "sbas", "gnss",
	"molniya", "raduga", "gorizont", "tdrss", "military", "radar",
}

// AvailableGroupNames возвращает известные группы Celestrak.
func AvailableGroupNames() []string {
	return slices.Clone(celestrakGroups)
}

// IsValidGroup сообщает, известна ли группа.
func IsValidGroup(group string) bool {
	return slices.Contains(celestrakGroups, group)
}

// CelestrakClient загружает элементы с Celestrak. Запросы ограничиваются
// по частоте, временные ошибки повторяются с экспоненциальной задержкой.
type CelestrakClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	maxRetries int
	backoff    time.Duration
}

// CelestrakOption настраивает CelestrakClient.
type CelestrakOption func(*CelestrakClient)

func WithHTTPClient(client *http.Client) CelestrakOption {
	return func(c *CelestrakClient) {
		c.httpClient = client
	}
}

// WithRateLimit задаёт минимальный интервал между запросами; 0 снимает ограничение.
func WithRateLimit(d time.Duration) CelestrakOption {
	return func(c *CelestrakClient) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithMaxRetries(n int) CelestrakOption {
	return func(c *CelestrakClient) {
		c.maxRetries = n
	}
}

// WithBackoff задаёт задержку перед первым повтором; далее она удваивается.
func WithBackoff(d time.Duration) CelestrakOption {
	return func(c *CelestrakClient) {
		c.backoff = d
	}
}

func WithBaseURL(url string) CelestrakOption {
	return func(c *CelestrakClient) {
		c.baseURL = url
	}
}

func NewCelestrakClient(opts ...CelestrakOption) *CelestrakClient {
	c := &CelestrakClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(DefaultRateLimit), 1),
		baseURL:    CelestrakBaseURL,
		maxRetries: DefaultMaxRetries,
		backoff:    time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchByNoradID загружает элементы одного спутника.
func (c *CelestrakClient) FetchByNoradID(ctx context.Context, noradID int) (*TLE, error) {
	tles, err := c.FetchURL(ctx, c.NoradURL(noradID))
	if err != nil {
		return nil, fmt.Errorf("NORAD ID %d: %w", noradID, err)
	}
	if len(tles) == 0 {
		return nil, fmt.Errorf("%w: NORAD ID %d", ErrNotFound, noradID)
	}

	return tles[0], nil
}

// FetchGroup загружает элементы группы.
func (c *CelestrakClient) FetchGroup(ctx context.Context, group string) ([]*TLE, error) {
	tles, err := c.FetchURL(ctx, c.GroupURL(group))
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", group, err)
	}

	return tles, nil
}

// FetchURL загружает и разбирает набор TLE по произвольному URL.
func (c *CelestrakClient) FetchURL(ctx context.Context, url string) ([]*TLE, error) {
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	tles, err := ParseTLEBatch(data)
	if err != nil {
		return nil, fmt.Errorf("parsing TLEs: %w", err)
	}

	return tles, nil
}

func (c *CelestrakClient) GroupURL(group string) string {
	return fmt.Sprintf("%s?GROUP=%s&FORMAT=TLE", c.baseURL, group)
}

func (c *CelestrakClient) NoradURL(noradID int) string {
	return fmt.Sprintf("%s?CATNR=%d&FORMAT=TLE", c.baseURL, noradID)
}

func (c *CelestrakClient) fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		data, err := c.doRequest(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// retryable: повторяются только перегрузка и ошибки сервера.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError)
}

func (c *CelestrakClient) doRequest(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrServerError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if string(body) == noGPData {
		return "", ErrNotFound
	}

	return string(body), nil
}

// LoadTLEFile читает набор TLE из файла.
func LoadTLEFile(path string) ([]*TLE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	tles, err := ParseTLEBatch(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return tles, nil
}
