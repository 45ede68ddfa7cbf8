package httpx

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/vacon/signaling/pkg/logger"
)

func hello(*Server) Handler {
	return NewServeMux("/api").HandleFunc("/hello", func(w ResponseWriter, _ *Request) {
		_, _ = w.Write([]byte("hello"))
	})
}

func get(t *testing.T, client *http.Client, url string) string {
	t.Helper()
	var (
		rs  *http.Response
		err error
	)
	for i := 0; i < 50; i++ {
		if rs, err = client.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("no response, %v", err)
	}
	defer func() { _ = rs.Body.Close() }()
	b, _ := io.ReadAll(rs.Body)
	return string(b)
}

func TestServerHttp(t *testing.T) {
	s, err := NewServer("127.0.0.1:0", hello, WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	s.Run()
	defer func() { _ = s.Shutdown(context.Background()) }()

	if s.GetProtocol() != "http" || s.GetHost() != "127.0.0.1" {
		t.Errorf("unexpected server %v", s)
	}
	body := get(t, http.DefaultClient, "http://127.0.0.1:"+strconv.Itoa(s.GetPort())+"/api/hello")
	if body != "hello" {
		t.Errorf("unexpected response %q", body)
	}
}

func TestServerHttps(t *testing.T) {
	cert := filepath.Join(t.TempDir(), "cert.pem")
	writeCert(t, cert, "relay")

	s, err := NewServer("127.0.0.1:0", hello, WithLogger(logger.NewNop()), func(o *Options) {
		o.Https = true
		o.HttpsCert = cert
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Run()
	defer func() { _ = s.Stop() }()

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	body := get(t, client, "https://127.0.0.1:"+strconv.Itoa(s.GetPort())+"/api/hello")
	if body != "hello" {
		t.Errorf("unexpected response %q", body)
	}
}
