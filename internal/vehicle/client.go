package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/car-rating/internal/config"
	"github.com/jmehdipour/car-rating/internal/metrics"
)

var (
	// ErrNotFound means the reference API answered but had no matching record.
	ErrNotFound = errors.New("vehicle: not found")
	// ErrUnavailable covers transport failures, non-2xx answers, bad JSON and an open breaker.
	ErrUnavailable = errors.New("vehicle: reference lookup unavailable")
)

// MakeRecord is one entry of the "all makes" listing.
type MakeRecord struct {
	ID   int    `json:"Make_ID"`
	Name string `json:"Make_Name"`
}

// ModelRecord is one entry of the "models for make" listing.
type ModelRecord struct {
	MakeID    int    `json:"Make_ID"`
	MakeName  string `json:"Make_Name"`
	ID        int    `json:"Model_ID"`
	ModelName string `json:"Model_Name"`
}

type envelope[T any] struct {
	Count   int    `json:"Count"`
	Message string `json:"Message"`
	Results []T    `json:"Results"`
}

// Client validates makes and models against a vPIC-compatible HTTP API.
// Every lookup is a fresh request; nothing is cached.
type Client struct {
	baseURL    string
	makesPath  string
	modelsPath string
	client     *http.Client
	br         *Breaker
}

func NewClient(cfg config.VehicleAPIConfig) *Client {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	openForMs := cfg.Breaker.OpenForMs
	if openForMs <= 0 {
		openForMs = 15000
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		makesPath:  cfg.MakesPath,
		modelsPath: cfg.ModelsPath,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         NewBreaker(cfg.Breaker.FailThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

// LookupMake returns the first make whose name equals upper(name).
func (c *Client) LookupMake(ctx context.Context, name string) (MakeRecord, error) {
	makes, err := fetch[MakeRecord](ctx, c, c.makesPath)
	if err != nil {
		metrics.VehicleLookupsTotal.WithLabelValues("make", "unavailable").Inc()
		return MakeRecord{}, err
	}

	want := strings.ToUpper(name)
	for _, m := range makes {
		if m.Name == want {
			metrics.VehicleLookupsTotal.WithLabelValues("make", "found").Inc()
			return m, nil
		}
	}

	metrics.VehicleLookupsTotal.WithLabelValues("make", "not_found").Inc()
	return MakeRecord{}, fmt.Errorf("make %q: %w", name, ErrNotFound)
}

// LookupModel returns the first model of upper(makeName) whose name equals modelName.
// Model names compare case-sensitively.
func (c *Client) LookupModel(ctx context.Context, makeName, modelName string) (ModelRecord, error) {
	path := fmt.Sprintf(c.modelsPath, url.PathEscape(strings.ToUpper(makeName)))

	models, err := fetch[ModelRecord](ctx, c, path)
	if err != nil {
		metrics.VehicleLookupsTotal.WithLabelValues("model", "unavailable").Inc()
		return ModelRecord{}, err
	}

	for _, m := range models {
		if m.ModelName == modelName {
			metrics.VehicleLookupsTotal.WithLabelValues("model", "found").Inc()
			return m, nil
		}
	}

	metrics.VehicleLookupsTotal.WithLabelValues("model", "not_found").Inc()
	return ModelRecord{}, fmt.Errorf("model %q of %q: %w", modelName, makeName, ErrNotFound)
}

func fetch[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	if !c.br.TryAcquire() {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	out, err := get[T](ctx, c.client, c.baseURL+path)
	if err != nil {
		if ctx.Err() != nil {
			// the caller gave up; says nothing about the upstream
			c.br.Release()
		} else {
			c.br.OnFailure()
		}
		c.reportBreaker()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	c.br.OnSuccess()
	c.reportBreaker()

	return out, nil
}

func (c *Client) reportBreaker() {
	open := 0.0
	if c.br.Open() {
		open = 1
	}
	metrics.VehicleBreakerOpen.Set(open)
}

func get[T any](ctx context.Context, client *http.Client, rawURL string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: status=%d", rawURL, res.StatusCode)
	}

	var env envelope[T]
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}

	return env.Results, nil
}
