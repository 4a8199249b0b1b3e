package grpcweb_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/auth"
	"clinic-records-api/internal/grpcweb"
	"clinic-records-api/internal/handler"
	"clinic-records-api/internal/middleware"
	"clinic-records-api/internal/model"
)

type stubAccounts struct{}

func (stubAccounts) Login(_ context.Context, login, secret string) (*auth.LoginResult, error) {
	if login == "a@x.com" && secret == "s" {
		return &auth.LoginResult{Authenticated: true, Token: "tok"}, nil
	}
	return nil, apperr.ErrInvalidCredentials
}

func (stubAccounts) Register(context.Context, auth.RegisterInput) (*model.Account, error) {
	return nil, apperr.ErrUnavailable
}
func (stubAccounts) ListAccounts(context.Context) ([]model.Account, error) { return nil, nil }
func (stubAccounts) ChangeSecret(context.Context, string) error           { return nil }
func (stubAccounts) SetProfileImage(context.Context, string) error        { return nil }

func setup(t *testing.T, extra ...grpc.UnaryServerInterceptor) *httptest.Server {
	t.Helper()
	tokens, err := auth.NewTokenService("bridge-test-secret-at-least-32-chars", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(append([]grpc.UnaryServerInterceptor{middleware.Auth(tokens)}, extra...)...))
	handler.Register(srv, handler.New(stubAccounts{}, nil, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	bridge, err := grpcweb.New("passthrough:///bufnet", []string{"http://app.local"},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	t.Cleanup(func() { _ = bridge.Close() })

	ts := httptest.NewServer(bridge.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func webFrame(t *testing.T, body map[string]any) []byte {
	t.Helper()
	msg, err := structpb.NewStruct(body)
	if err != nil {
		t.Fatal(err)
	}
	b, err := proto.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	f := make([]byte, 5+len(b))
	binary.BigEndian.PutUint32(f[1:5], uint32(len(b)))
	copy(f[5:], b)
	return f
}

// readFrames splits a grpc-web response into its data payload and trailer text.
func readFrames(t *testing.T, b []byte) (data []byte, trailer string) {
	t.Helper()
	for len(b) >= 5 {
		n := binary.BigEndian.Uint32(b[1:5])
		payload := b[5 : 5+n]
		if b[0]&0x80 != 0 {
			trailer = string(payload)
		} else {
			data = payload
		}
		b = b[5+n:]
	}
	return data, trailer
}

func post(t *testing.T, ts *httptest.Server, method string, body []byte, header map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, ts.URL+handler.FullMethod(method), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestBridgeForwardsLogin(t *testing.T) {
	ts := setup(t)

	resp := post(t, ts, "Login", webFrame(t, map[string]any{"email": "a@x.com", "secret": "s"}), nil)
	raw, _ := io.ReadAll(resp.Body)
	data, trailer := readFrames(t, raw)

	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer: %q", trailer)
	}
	out := &structpb.Struct{}
	if err := proto.Unmarshal(data, out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fields["token"].GetStringValue() != "tok" {
		t.Errorf("response: %v", out)
	}
}

func TestBridgeSurfacesStatus(t *testing.T) {
	ts := setup(t)

	tests := []struct {
		name   string
		method string
		header map[string]string
		want   string
	}{
		{"bad credentials", "Login", nil, "grpc-status:16"},
		{"no token", "ListDoctors", nil, "grpc-status:16"},
		{"garbage token", "ListDoctors", map[string]string{"X-Access-Token": "zzz"}, "malformed_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.method, webFrame(t, map[string]any{"email": "x", "secret": "y"}), tt.header)
			raw, _ := io.ReadAll(resp.Body)
			_, trailer := readFrames(t, raw)
			if !strings.Contains(trailer, tt.want) {
				t.Errorf("trailer: %q, want %q", trailer, tt.want)
			}
		})
	}
}

func TestBridgeRejects(t *testing.T) {
	ts := setup(t)

	resp, err := http.Get(ts.URL + handler.FullMethod("Login"))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET: %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+handler.FullMethod("Login"), "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("json: %d", resp.StatusCode)
	}

	short := post(t, ts, "Login", []byte{0, 0}, nil)
	raw, _ := io.ReadAll(short.Body)
	if _, trailer := readFrames(t, raw); !strings.Contains(trailer, "grpc-status:3") {
		t.Errorf("short body trailer: %q", trailer)
	}
}

func TestBridgeCORS(t *testing.T) {
	ts := setup(t)

	for origin, want := range map[string]string{
		"http://app.local":  "http://app.local",
		"http://evil.local": "",
	} {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+handler.FullMethod("Login"), nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: got %q, want %q", origin, got, want)
		}
	}
}

func TestBridgeForwardsClientAddress(t *testing.T) {
	got := make(chan []string, 1)
	ts := setup(t, func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		got <- md.Get(middleware.ForwardedHeader)
		return next(ctx, req)
	})

	post(t, ts, "Login", webFrame(t, map[string]any{"email": "a@x.com", "secret": "s"}),
		map[string]string{"X-Forwarded-For": "203.0.113.99"})

	fwd := <-got
	if len(fwd) != 1 || fwd[0] != "127.0.0.1" {
		t.Errorf("forwarded address: got %v, want the connecting address only", fwd)
	}
}
