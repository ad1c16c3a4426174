package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/robotdriver/pkg/page"
	"github.com/entrhq/robotdriver/pkg/page/pagetest"
	"github.com/entrhq/robotdriver/pkg/snapshot"
)

func localPage() *pagetest.Page {
	return &pagetest.Page{
		PageURL: "https://shop.example/products",
		Tree:    &page.AXNode{Role: page.Str("RootWebArea"), Name: page.Str("Local")},
	}
}

func TestSourceUsesRemoteWhenAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	p := localPage()
	src := NewSource(NewClient(time.Second), srv.URL, nil, nil)
	snap, origin, warnings := src.Snapshot(context.Background(), p)

	assert.Equal(t, OriginRemote, origin)
	assert.Empty(t, warnings)
	assert.Len(t, snap.Elements, 2)
	assert.Zero(t, p.QueryCalls)
}

func TestSourceFallsBackOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewSource(NewClient(time.Second), srv.URL, snapshot.NewBuilder(), nil)
	snap, origin, _ := src.Snapshot(context.Background(), localPage())

	assert.Equal(t, OriginLocal, origin)
	require.Len(t, snap.Accessibility(), 1)
	assert.Equal(t, "Local", *snap.Accessibility()[0].Name)
}

func TestSourceLocalOnlyWithoutServiceURL(t *testing.T) {
	src := NewSource(NewClient(time.Second), "", nil, nil)
	snap, origin, _ := src.Snapshot(context.Background(), localPage())

	assert.Equal(t, OriginLocal, origin)
	assert.Equal(t, "https://shop.example/products", snap.URL)
}
