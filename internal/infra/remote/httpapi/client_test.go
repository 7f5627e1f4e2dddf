package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"placekit/internal/infra/remote/httpapi"
	"placekit/internal/remote"
	"placekit/internal/server"
	"placekit/pkg/domain"
)

func newServer(t *testing.T) (*httpapi.Client, *remote.MemoryStore) {
	t.Helper()
	records := remote.NewMemory()
	srv := httptest.NewServer(server.NewHandler(records, nil))
	t.Cleanup(srv.Close)
	return httpapi.New(srv.URL+"/", srv.Client()), records
}

func sample(name string, sec int64) domain.PlacedObject {
	return domain.NewPlacedObject(name, "lamp.usdz", domain.IdentityTransform(), time.Unix(sec, 0).UTC())
}

func TestClientCRUD(t *testing.T) {
	ctx := context.Background()
	client, records := newServer(t)
	if client.Driver() != remote.DriverHTTP {
		t.Fatalf("unexpected driver %q", client.Driver())
	}

	got, err := client.FetchAll(ctx, domain.RecordType)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty fetch: %v %+v", err, got)
	}

	a, b := sample("a", 10), sample("b", 20)
	for _, obj := range []domain.PlacedObject{a, b} {
		if err := client.Upsert(ctx, domain.RecordType, obj); err != nil {
			t.Fatalf("upsert %s: %v", obj.Name, err)
		}
	}
	a.Name = "renamed"
	a.LastModified = a.LastModified.Add(time.Second)
	if err := client.Upsert(ctx, domain.RecordType, a); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if records.Calls("upsert") != 3 {
		t.Fatalf("expected 3 upserts on the server, got %d", records.Calls("upsert"))
	}

	got, err = client.FetchAll(ctx, domain.RecordType)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want, _ := records.FetchAll(ctx, domain.RecordType)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fetch mismatch (-server +client):\n%s", diff)
	}

	ok, err := client.Delete(ctx, domain.RecordType, b.ID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = client.Delete(ctx, domain.RecordType, b.ID)
	if err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}

	n, err := client.DeleteAll(ctx, domain.RecordType)
	if err != nil || n != 1 {
		t.Fatalf("delete all: %d %v", n, err)
	}
}

func TestClientRecordTypesAreIsolated(t *testing.T) {
	ctx := context.Background()
	client, _ := newServer(t)
	if err := client.Upsert(ctx, "Scene A", sample("x", 1)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := client.FetchAll(ctx, domain.RecordType)
	if err != nil || len(got) != 0 {
		t.Fatalf("record types leaked: %v %+v", err, got)
	}
	got, err = client.FetchAll(ctx, "Scene A")
	if err != nil || len(got) != 1 {
		t.Fatalf("escaped record type: %v %+v", err, got)
	}
}

func TestClientRejectsEmptyID(t *testing.T) {
	client, records := newServer(t)
	obj := sample("x", 1)
	obj.ID = ""
	if err := client.Upsert(context.Background(), domain.RecordType, obj); err == nil {
		t.Fatalf("expected empty id error")
	}
	if records.Calls("upsert") != 0 {
		t.Fatalf("empty id must not reach the server")
	}
}

func TestClientServerFailureIsUnavailable(t *testing.T) {
	client, records := newServer(t)
	records.SetUnavailable(errors.New("db down"))

	_, err := client.FetchAll(context.Background(), domain.RecordType)
	var ru *domain.RemoteUnavailableError
	if !errors.As(err, &ru) || ru.Driver != "http" || ru.Op != "fetch" {
		t.Fatalf("expected http fetch unavailable error, got %v", err)
	}
	var se *httpapi.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable || se.Message != "record store unavailable" {
		t.Fatalf("expected 503 status error, got %v", err)
	}
}

func TestClientTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := httpapi.New(url, nil)
	err := client.Upsert(context.Background(), domain.RecordType, sample("x", 1))
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[`))
	}))
	t.Cleanup(srv.Close)
	_, err := httpapi.New(srv.URL, srv.Client()).FetchAll(context.Background(), domain.RecordType)
	if !errors.Is(err, domain.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestClientPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)
	_, err := httpapi.New(srv.URL, srv.Client()).DeleteAll(context.Background(), domain.RecordType)
	var se *httpapi.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTeapot || se.Message != "teapot" {
		t.Fatalf("unexpected error %v", err)
	}
}
