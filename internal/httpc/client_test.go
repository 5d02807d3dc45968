package httpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no frame captured yet"}`))
		}
	}))
	defer srv.Close()

	body, ct, err := GetBytes(context.Background(), srv.URL+"/image")
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if ct != "image/jpeg" || len(body) != 4 {
		t.Errorf("got %d bytes of %q", len(body), ct)
	}

	_, _, err = GetBytes(context.Background(), srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusNotFound || se.Body != `{"error":"no frame captured yet"}` {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestGetBytes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := GetBytes(ctx, "http://127.0.0.1:1/image"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
