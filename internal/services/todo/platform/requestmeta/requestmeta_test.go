package requestmeta

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postTo(target string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		req    *http.Request
		policy Policy
		want   bool
	}{
		{
			name: "origin matches",
			req:  postTo("https://todo.example.test/todos/add", map[string]string{"Origin": "https://todo.example.test"}),
			want: true,
		},
		{
			name: "referer matches",
			req:  postTo("https://todo.example.test/logout", map[string]string{"Referer": "https://todo.example.test/"}),
			want: true,
		},
		{
			name: "origin wins over referer",
			req: postTo("https://todo.example.test/logout", map[string]string{
				"Origin":  "https://evil.example.test",
				"Referer": "https://todo.example.test/",
			}),
			want: false,
		},
		{
			name: "scheme mismatch",
			req:  postTo("https://todo.example.test/logout", map[string]string{"Origin": "http://todo.example.test"}),
			want: false,
		},
		{
			name: "port mismatch",
			req:  postTo("https://todo.example.test:8443/logout", map[string]string{"Origin": "https://todo.example.test"}),
			want: false,
		},
		{
			name: "forwarded proto trusted",
			req: postTo("http://todo.example.test/logout", map[string]string{
				"Origin":            "https://todo.example.test",
				"X-Forwarded-Proto": "https",
			}),
			policy: Policy{TrustForwardedProto: true},
			want:   true,
		},
		{
			name: "no proof",
			req:  postTo("https://todo.example.test/logout", nil),
			want: false,
		},
		{
			name: "nil request",
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.policy.SameOrigin(tc.req); got != tc.want {
				t.Fatalf("SameOrigin() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSameOriginBehindTLSProxy(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/todos/add", nil)
	req.Host = "todo.example.test"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("Origin", "https://todo.example.test")

	if (Policy{}).SameOrigin(req) {
		t.Fatal("untrusted forwarded proto should not upgrade scheme")
	}
	if !(Policy{TrustForwardedProto: true}).SameOrigin(req) {
		t.Fatal("trusted forwarded proto should match https origin")
	}
}

func TestIsHTTPS(t *testing.T) {
	t.Parallel()

	if IsHTTPS(nil) {
		t.Fatal("expected nil request to be non-https")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsHTTPS(req) {
		t.Fatal("expected plain request to be non-https")
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if IsHTTPS(req) {
		t.Fatal("expected forwarded proto to be ignored by default")
	}
	if !(Policy{TrustForwardedProto: true}).IsHTTPS(req) {
		t.Fatal("expected trusted forwarded proto to be https")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	if !IsHTTPS(req) {
		t.Fatal("expected TLS request to be https")
	}
}
