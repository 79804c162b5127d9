package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sasta-kro/labuh-go/errs"
)

const cloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// Cloudflare implements Provider against the Cloudflare v4 DNS API,
// scoped to a single zone with a single API token.
type Cloudflare struct {
	APIToken string
	ZoneID   string
	http     *http.Client
}

// NewCloudflare builds a provider from a team's stored DnsConfig blob
// (api_token, zone_id), decoded by the caller.
func NewCloudflare(apiToken, zoneID string) *Cloudflare {
	return &Cloudflare{APIToken: apiToken, ZoneID: zoneID, http: &http.Client{}}
}

type cloudflareRecordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type cloudflareResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		ID string `json:"id"`
	} `json:"result"`
}

func (c *Cloudflare) CreateRecord(ctx context.Context, req CreateRecordRequest) (string, error) {
	body := cloudflareRecordRequest{
		Type:    string(req.Type),
		Name:    req.Domain,
		Content: req.Target,
		TTL:     1, // 1 = automatic
		Proxied: req.Proxied,
	}

	var out cloudflareResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/dns_records", c.ZoneID), body, &out); err != nil {
		return "", err
	}
	return out.Result.ID, nil
}

func (c *Cloudflare) DeleteRecord(ctx context.Context, recordID string) error {
	var out cloudflareResponse
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/zones/%s/dns_records/%s", c.ZoneID, recordID), nil, &out)
}

func (c *Cloudflare) do(ctx context.Context, method, path string, body any, out *cloudflareResponse) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode cloudflare request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, cloudflareBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.ProviderErrorKind, "cloudflare api request", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.ProviderErrorKind, "decode cloudflare response", err)
	}
	if !out.Success {
		msg := "unknown error"
		if len(out.Errors) > 0 {
			msg = out.Errors[0].Message
		}
		return errs.New(errs.ProviderErrorKind, fmt.Sprintf("cloudflare api error: %s", msg))
	}
	return nil
}
