package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanzone-api/apperrors"
	"cleanzone-api/clock"
	"cleanzone-api/repositories"
	"cleanzone-api/testutil"
)

func newTileUpstream(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("User-Agent") != "cleanzone-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path == "/1/1/1.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("tile:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTileService_FetchesOncePerKey(t *testing.T) {
	var hits int32
	upstream := newTileUpstream(t, &hits)
	store := repositories.NewTileCacheRepository(testutil.NewDB(t))
	svc := NewTileService(store, upstream.URL+"/{z}/{x}/{y}.png", "cleanzone-test", time.Second, clock.NewManual(baseTime), quietLogger())
	ctx := context.Background()

	first, err := svc.Get(ctx, 3, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "3/2/5", first.Key)
	assert.Equal(t, "image/png", first.ContentType)
	assert.Equal(t, []byte("tile:/3/2/5.png"), first.Data)
	assert.Equal(t, baseTime, first.FetchedAt)

	second, err := svc.Get(ctx, 3, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	_, err = svc.Get(ctx, 3, 2, 6)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestTileService_Errors(t *testing.T) {
	var hits int32
	upstream := newTileUpstream(t, &hits)
	store := repositories.NewTileCacheRepository(testutil.NewDB(t))
	svc := NewTileService(store, upstream.URL+"/{z}/{x}/{y}.png", "cleanzone-test", time.Second, clock.NewManual(baseTime), quietLogger())
	ctx := context.Background()

	for _, c := range [][3]int{{-1, 0, 0}, {20, 0, 0}, {2, 4, 0}, {2, 0, -1}} {
		_, err := svc.Get(ctx, c[0], c[1], c[2])
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), "%v", c)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))

	_, err := svc.Get(ctx, 1, 1, 1)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = store.Get(ctx, "1/1/1")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound), "failed fetches are not cached")
}

func TestTileService_UpstreamDown(t *testing.T) {
	store := repositories.NewTileCacheRepository(testutil.NewDB(t))
	svc := NewTileService(store, "http://127.0.0.1:1/{z}/{x}/{y}.png", "cleanzone-test", 200*time.Millisecond, clock.NewManual(baseTime), quietLogger())

	_, err := svc.Get(context.Background(), 0, 0, 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
