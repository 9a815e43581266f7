package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	defaultTimeout = 10 * time.Second
)

// Client fetches current weather from OpenWeatherMap.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewClient constructs a Client. An empty baseURL selects DefaultBaseURL and
// a non-positive timeout selects the 10 second default.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type owmResponse struct {
	Name *string `json:"name"`
	Sys  *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *int     `json:"humidity"`
		Pressure *int     `json:"pressure"`
	} `json:"main"`
}

// Fetch returns the current observation for city, or nil when the API is
// unreachable, answers with a non-2xx status, or sends a body that does not
// map onto a valid Observation. Failures are logged, never returned.
func (c *Client) Fetch(ctx context.Context, city string) *Observation {
	obs, err := c.fetch(ctx, city)
	if err != nil {
		c.log.Warn("weather fetch failed", "city", city, "err", err)
		return nil
	}
	return obs
}

func (c *Client) fetch(ctx context.Context, city string) (*Observation, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	endpoint := c.baseURL + "/weather?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the API key; keep it out of the logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("GET %s/weather: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s/weather returned status %d", c.baseURL, resp.StatusCode)
	}

	var raw owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	obs, err := raw.observation()
	if err != nil {
		return nil, err
	}
	if err := obs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observation: %w", err)
	}
	return obs, nil
}

func (r owmResponse) observation() (*Observation, error) {
	switch {
	case r.Name == nil:
		return nil, fmt.Errorf("response missing name")
	case r.Sys == nil || r.Sys.Country == nil:
		return nil, fmt.Errorf("response missing sys.country")
	case r.Main == nil || r.Main.Temp == nil || r.Main.Humidity == nil || r.Main.Pressure == nil:
		return nil, fmt.Errorf("response missing main measurements")
	}
	return &Observation{
		City:        *r.Name,
		Country:     *r.Sys.Country,
		Temperature: *r.Main.Temp,
		Humidity:    *r.Main.Humidity,
		Pressure:    *r.Main.Pressure,
	}, nil
}
