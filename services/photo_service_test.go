package services

import (
	"bytes"
	"context"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
)

func pngImage(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(width, height, color.NRGBA{R: 40, G: 160, B: 90, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return &buf
}

func TestPhotoService_UploadBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")
	zone := f.zone(t, reporter)
	files := NewFileStorage(t.TempDir())
	svc := NewPhotoService(f.store, files, f.clock, 1024, quietLogger())

	photo, err := svc.Upload(ctx, reporter.ID, zone.ID, models.PhotoKindBefore, pngImage(t, 3000, 1500))
	require.NoError(t, err)
	assert.Equal(t, 1024, photo.Width)
	assert.Equal(t, 512, photo.Height)
	assert.Equal(t, "image/jpeg", photo.ContentType)
	assert.True(t, strings.HasPrefix(photo.Path, "zones/"))
	assert.True(t, files.Exists(photo.Path))

	z, err := f.zones.Get(ctx, zone.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{photo.ID}, z.BeforePhotoIDs)
	assert.Empty(t, z.AfterPhotoIDs)

	got, rc, err := svc.Open(ctx, photo.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, photo.ID, got.ID)
	decoded, err := imaging.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, 1024, decoded.Bounds().Dx())
}

func TestPhotoService_AfterRequiresCleaning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")
	admin := f.user(t, "admin")
	zone := f.zone(t, reporter)
	svc := NewPhotoService(f.store, NewFileStorage(t.TempDir()), f.clock, 0, quietLogger())

	_, err := svc.Upload(ctx, reporter.ID, zone.ID, models.PhotoKindAfter, pngImage(t, 10, 10))
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = f.zones.SetStatus(ctx, admin.ID, models.RoleAdmin, zone.ID, models.ZoneStatusCleaned)
	require.NoError(t, err)

	photo, err := svc.Upload(ctx, reporter.ID, zone.ID, models.PhotoKindAfter, pngImage(t, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, photo.Width)

	z, err := f.zones.Get(ctx, zone.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{photo.ID}, z.AfterPhotoIDs)
}

func TestPhotoService_AfterAcceptedWhileCleaning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.user(t, "organizer")
	zone := f.zone(t, org)
	event := f.event(t, org, zone, nil)
	svc := NewPhotoService(f.store, NewFileStorage(t.TempDir()), f.clock, 0, quietLogger())

	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.events.MarkStarted(ctx, event.ID))

	photo, err := svc.Upload(ctx, org.ID, zone.ID, models.PhotoKindAfter, pngImage(t, 10, 10))
	require.NoError(t, err)

	z, err := f.zones.Get(ctx, zone.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneStatusCleaningInProgress, z.Status)
	assert.Equal(t, models.IDSet{photo.ID}, z.AfterPhotoIDs)
}

func TestPhotoService_ConcurrentUploadsKeepEveryID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporter := f.user(t, "reporter")
	zone := f.zone(t, reporter)
	svc := NewPhotoService(f.store, NewFileStorage(t.TempDir()), f.clock, 0, quietLogger())

	const uploads = 4
	ids := make(chan uint32, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		img := pngImage(t, 8, 8)
		wg.Add(1)
		go func() {
			defer wg.Done()
			photo, err := svc.Upload(ctx, reporter.ID, zone.ID, models.PhotoKindBefore, img)
			if assert.NoError(t, err) {
				ids <- photo.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var want models.IDSet
	for id := range ids {
		want = want.With(id)
	}
	require.Len(t, want, uploads)

	z, err := f.zones.Get(ctx, zone.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, z.BeforePhotoIDs)
}

func TestPhotoService_RejectsNonImages(t *testing.T) {
	f := newFixture(t)
	reporter := f.user(t, "reporter")
	zone := f.zone(t, reporter)
	svc := NewPhotoService(f.store, NewFileStorage(t.TempDir()), f.clock, 0, quietLogger())

	_, err := svc.Upload(context.Background(), reporter.ID, zone.ID, models.PhotoKindBefore, strings.NewReader("not an image"))
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.Upload(context.Background(), reporter.ID, 999, models.PhotoKindBefore, pngImage(t, 10, 10))
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestFileStorage_StaysUnderBase(t *testing.T) {
	files := NewFileStorage(t.TempDir())

	require.NoError(t, files.Save("a/b.txt", strings.NewReader("x")))
	assert.True(t, files.Exists("a/b.txt"))
	assert.False(t, files.Exists("a/missing.txt"))

	_, err := files.Open("a/missing.txt")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	require.NoError(t, files.Delete("a/b.txt"))
	assert.False(t, files.Exists("a/b.txt"))

	require.NoError(t, files.Save("../../escape.txt", strings.NewReader("x")))
	assert.True(t, files.Exists("escape.txt"))
}
