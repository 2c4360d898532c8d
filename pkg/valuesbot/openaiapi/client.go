// Package openaiapi builds the OpenAI client shared by the assistant,
// validation, emotion and speech packages, and holds the forced
// function-call helper they use for structured extraction.
package openaiapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Config configures the OpenAI endpoint and credentials.
type Config struct {
	// BaseURL overrides the API base URL (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey is the API key. Supports ${VAR} references and keyring lookup.
	APIKey string `yaml:"api_key"`

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string `yaml:"organization"`
}

// NewClient creates an OpenAI client from cfg. Requests carry no global
// timeout; callers bound them through their context.
func NewClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.OrgID = cfg.Organization
	cc.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	return openai.NewClientWithConfig(cc), nil
}
