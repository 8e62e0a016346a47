// Package upstream talks to the catalog backend over HTTP.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"catalog-bff/internal/common/config"
	"catalog-bff/internal/common/errors"
	httpclient "catalog-bff/internal/common/http"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/common/validation"
	"catalog-bff/internal/models"
	"catalog-bff/internal/session"
	"catalog-bff/internal/tier"
)

const defaultCollectionsMessage = "Failed to fetch collections"

var collectionsSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["collection"],
	"properties": {
		"collection": {
			"type": "array",
			"items": {"type": "object"}
		}
	}
}`)

// StatusError is a non-2xx upstream response. Message is the body's
// "message" field when present.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

type Client struct {
	http            *httpclient.Client
	baseURL         string
	collectionsPath string
	plansPath       string
	authCheckPath   string
	logger          logger.Logger
}

func NewClient(cfg config.UpstreamConfig, log logger.Logger) *Client {
	return &Client{
		http:            httpclient.NewClient(config.GetDuration(cfg.Timeout)).WithMaxBodyBytes(cfg.MaxBodyBytes),
		baseURL:         cfg.BaseURL,
		collectionsPath: cfg.CollectionsPath,
		plansPath:       cfg.PlansPath,
		authCheckPath:   cfg.AuthCheckPath,
		logger:          log.WithFields(map[string]interface{}{"component": "upstream"}),
	}
}

// FetchCollections returns the catalog. Transport failures, non-2xx
// responses and payloads without a "collection" array are errors.
func (c *Client) FetchCollections(ctx context.Context) ([]models.Collection, error) {
	resp, err := c.http.Get(ctx, c.baseURL+c.collectionsPath)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(models.SourceCollections, err)
	}

	if !resp.OK() {
		msg := defaultCollectionsMessage
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Body, &body) == nil && body.Message != "" {
			msg = body.Message
		}
		c.logger.Warn("Collections request rejected", map[string]interface{}{
			"status":  resp.StatusCode,
			"message": msg,
		})
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if res := collectionsSchema.Validate(resp.Body); !res.Valid {
		return nil, errors.NewInvalidUpstreamPayloadError(models.SourceCollections, res.Summary())
	}

	var payload struct {
		Collection []models.Collection `json:"collection"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, errors.NewInvalidUpstreamPayloadError(models.SourceCollections, err.Error())
	}
	if payload.Collection == nil {
		payload.Collection = []models.Collection{}
	}
	if n := tier.CountUnknown(payload.Collection); n > 0 {
		c.logger.Warn("Collections with unrecognised tier", map[string]interface{}{
			"count": n,
		})
	}

	c.logger.Debug("Collections fetched", map[string]interface{}{
		"count": len(payload.Collection),
	})
	return payload.Collection, nil
}

// FetchPlans returns the plan list, or nil when the response carries no
// "plans" array.
func (c *Client) FetchPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	resp, err := c.http.Get(ctx, c.baseURL+c.plansPath)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(models.SourcePlans, err)
	}
	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("plans request returned %d", resp.StatusCode)}
	}

	var payload struct {
		Plans json.RawMessage `json:"plans"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, errors.NewInvalidUpstreamPayloadError(models.SourcePlans, err.Error())
	}

	raw := bytes.TrimSpace(payload.Plans)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, nil
	}
	var plans []models.SubscriptionPlan
	if err := json.Unmarshal(raw, &plans); err != nil {
		return nil, errors.NewInvalidUpstreamPayloadError(models.SourcePlans, err.Error())
	}
	if plans == nil {
		plans = []models.SubscriptionPlan{}
	}
	return plans, nil
}

// FetchSessionUser runs the auth check with the caller's credentials. The
// status code is ignored; only the body's success flag counts.
func (c *Client) FetchSessionUser(ctx context.Context, creds session.Credentials) (models.AuthCheck, error) {
	resp, err := c.http.Get(ctx, c.baseURL+c.authCheckPath,
		httpclient.WithCookies(creds.Cookies),
		httpclient.WithHeader("Authorization", creds.Authorization),
	)
	if err != nil {
		return models.AuthCheck{}, errors.NewUpstreamUnavailableError(models.SourceSession, err)
	}

	var check models.AuthCheck
	if err := json.Unmarshal(resp.Body, &check); err != nil {
		return models.AuthCheck{}, errors.NewInvalidUpstreamPayloadError(models.SourceSession, err.Error())
	}
	return check, nil
}
