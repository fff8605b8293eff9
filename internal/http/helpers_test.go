package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"casebook/internal/core"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Asha  ", "Asha"},
		{"line\x00break\x07", "linebreak"},
		{"tab\tand\nnewline", "tab\tand\nnewline"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeCaseFields(t *testing.T) {
	amount := decimal.NewFromInt(900)
	base := core.CaseFields{
		Date: "2024-03-01", Hospital: "City Hospital", PatientName: "Asha", Diagnosis: "D",
		StartTime: "10:00", EndTime: "11:00", Duration: 60, Amount: &amount,
	}

	tests := []struct {
		name         string
		body         string
		wantDuration int
		wantAmount   string
		wantErr      bool
	}{
		{"untouched times keep duration", `{"remarks":"ok"}`, 60, "900", false},
		{"changed end time re-derives", `{"endTime":"12:30"}`, 150, "900", false},
		{"explicit duration wins", `{"endTime":"12:30","duration":10}`, 10, "900", false},
		{"amount as string", `{"amount":"1250.75"}`, 60, "1250.75", false},
		{"unparseable times keep duration", `{"startTime":"late"}`, 60, "900", false},
		{"not json", `date=2024-01-01`, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/cases/x", strings.NewReader(tt.body))
			f, err := DecodeCaseFields(httptest.NewRecorder(), req, base)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if f.Duration != tt.wantDuration {
				t.Errorf("Duration = %d, want %d", f.Duration, tt.wantDuration)
			}
			if f.Amount == nil || !f.Amount.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("Amount = %v, want %s", f.Amount, tt.wantAmount)
			}
		})
	}

	if !base.Amount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("base amount mutated to %s", base.Amount)
	}
}

func TestParseListParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/cases?q=+asha+&status=success", nil)
	p := ParseListParams(req)
	if p.Query != "asha" || p.Status != "SUCCESS" {
		t.Errorf("ParseListParams() = %+v", p)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	metrics := &securityMetrics{}

	if !rl.allow("10.0.0.1", metrics) || !rl.allow("10.0.0.1", metrics) {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("10.0.0.1", metrics) {
		t.Error("third request in window should be rejected")
	}
	if !rl.allow("10.0.0.2", metrics) {
		t.Error("other clients have their own budget")
	}
	if metrics.rateLimitHits != 1 {
		t.Errorf("rateLimitHits = %d, want 1", metrics.rateLimitHits)
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("10.0.0.1", metrics) {
		t.Error("new window should reset the budget")
	}

	now = now.Add(11 * time.Minute)
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 0 {
		t.Errorf("ActiveClients() = %d after cleanup", rl.ActiveClients())
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name, remote, xff, want string
	}{
		{"direct", "203.0.113.9:5000", "", "203.0.113.9"},
		{"trusted proxy forwards", "10.1.2.3:80", "198.51.100.7, 10.1.2.3", "198.51.100.7"},
		{"untrusted proxy ignored", "203.0.113.9:5000", "198.51.100.7", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	metrics := &securityMetrics{}
	bad := httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil)
	if !detectSuspiciousRequest(bad, metrics) {
		t.Error("path traversal should be flagged")
	}
	good := httptest.NewRequest(http.MethodGet, "/cases?q=asha", nil)
	good.Header.Set("User-Agent", "curl/8.0")
	if detectSuspiciousRequest(good, metrics) {
		t.Error("plain API call should not be flagged")
	}
	if metrics.suspiciousRequests != 1 {
		t.Errorf("suspiciousRequests = %d, want 1", metrics.suspiciousRequests)
	}
}
