package dns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestRecordTypeFor(t *testing.T) {
	cases := []struct {
		target string
		want   RecordType
	}{
		{"203.0.113.5", RecordA},
		{"2001:db8::1", RecordA},
		{"tunnel-abc.cfargotunnel.com", RecordCNAME},
		{"example.com", RecordCNAME},
	}
	for _, tc := range cases {
		if got := RecordTypeFor(tc.target); got != tc.want {
			t.Errorf("RecordTypeFor(%q) = %q, want %q", tc.target, got, tc.want)
		}
	}
}

// redirectTransport rewrites every outbound request to point at a local
// test server instead of the real Cloudflare API, so Cloudflare's do()
// helper can be exercised without a network call.
type redirectTransport struct {
	targetURL *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.targetURL.Scheme
	req.URL.Host = rt.targetURL.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestCloudflare(t *testing.T, handler http.HandlerFunc) *Cloudflare {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}

	c := NewCloudflare("test-token", "zone-1")
	c.http = &http.Client{Transport: redirectTransport{targetURL: target}}
	return c
}

func TestCloudflareCreateRecordReturnsRecordID(t *testing.T) {
	c := newTestCloudflare(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization header = %q, want Bearer test-token", auth)
		}
		var body cloudflareRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body.Name != "app.example.com" || body.Content != "203.0.113.5" {
			t.Errorf("request body = %+v, unexpected", body)
		}

		resp := cloudflareResponse{Success: true}
		resp.Result.ID = "record-123"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	recordID, err := c.CreateRecord(context.Background(), CreateRecordRequest{
		Domain: "app.example.com",
		Target: "203.0.113.5",
		Type:   RecordA,
	})
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if recordID != "record-123" {
		t.Errorf("recordID = %q, want record-123", recordID)
	}
}

func TestCloudflareCreateRecordSurfacesAPIError(t *testing.T) {
	c := newTestCloudflare(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cloudflareResponse{
			Success: false,
			Errors: []struct {
				Message string `json:"message"`
			}{{Message: "invalid zone"}},
		})
	})

	_, err := c.CreateRecord(context.Background(), CreateRecordRequest{Domain: "app.example.com", Target: "203.0.113.5", Type: RecordA})
	if err == nil {
		t.Fatal("expected error on unsuccessful cloudflare response")
	}
}

func TestCloudflareDeleteRecord(t *testing.T) {
	var gotPath string
	c := newTestCloudflare(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cloudflareResponse{Success: true})
	})

	if err := c.DeleteRecord(context.Background(), "record-123"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if want := "/zones/zone-1/dns_records/record-123"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}
