// Package translate talks to the Google Cloud Translation v2 REST API.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://translation.googleapis.com/language/translate/v2"

// ErrNotConfigured is returned when neither an API key nor a token is set.
var ErrNotConfigured = errors.New("translation backend not configured")

type Result struct {
	Text           string
	SourceLanguage string
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (Result, error)
	Detect(ctx context.Context, text string) (string, error)
}

type Config struct {
	Endpoint          string
	APIKey            string
	AccessToken       string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	limiter    *rate.Limiter
}

// NewClient authenticates with the API key when set, otherwise with the
// bearer token through an oauth2 transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" && cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.APIKey == "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
		httpClient = oauth2.NewClient(context.Background(), source)
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

type translateRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type detectRequest struct {
	Q []string `json:"q"`
}

type detectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Translate(ctx context.Context, text, target string) (Result, error) {
	var resp translateResponse
	if err := c.post(ctx, c.endpoint, translateRequest{Q: []string{text}, Target: target, Format: "text"}, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Data.Translations) == 0 {
		return Result{}, errors.New("translate: empty response")
	}
	first := resp.Data.Translations[0]
	return Result{
		Text:           html.UnescapeString(first.TranslatedText),
		SourceLanguage: normalizeCode(first.DetectedSourceLanguage),
	}, nil
}

func (c *Client) Detect(ctx context.Context, text string) (string, error) {
	var resp detectResponse
	if err := c.post(ctx, c.endpoint+"/detect", detectRequest{Q: []string{text}}, &resp); err != nil {
		return "", err
	}
	if len(resp.Data.Detections) == 0 || len(resp.Data.Detections[0]) == 0 {
		return "", errors.New("detect: empty response")
	}
	best := resp.Data.Detections[0][0]
	for _, candidate := range resp.Data.Detections[0][1:] {
		if candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	return normalizeCode(best.Language), nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("translation API error %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("translation API error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// normalizeCode keeps the primary subtag: "zh-CN" becomes "zh".
func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		code = code[:idx]
	}
	return code
}
