package codelist_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asfclaim/claimerd/internal/codelist"
)

func TestHTTPSource_TrimsAndDropsEmpties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a/100\n\n  a/200  \n\ns/303\n"))
	}))
	defer srv.Close()

	src := codelist.NewHTTPSource(srv.URL, 5*time.Second)
	codes, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a/100", "a/200", "s/303"}
	if len(codes) != len(want) {
		t.Fatalf("expected %d codes, got %d: %v", len(want), len(codes), codes)
	}
	for i, w := range want {
		if string(codes[i]) != w {
			t.Fatalf("at %d: expected %q, got %q", i, w, codes[i])
		}
	}
}

func TestHTTPSource_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := codelist.NewHTTPSource(srv.URL, 5*time.Second)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
}
