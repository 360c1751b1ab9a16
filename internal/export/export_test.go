package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/notes"
	"github.com/kuitang/notesaas/internal/s3client"
	"github.com/kuitang/notesaas/internal/testdb"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRun_UploadsSnapshotAndPresigns(t *testing.T) {
	t.Parallel()
	d := testdb.New(t)
	fake := clock.NewFake(epoch)
	svc := notes.NewService(d, entitlement.NewResolver(d), notes.WithClock(fake), notes.WithTransactor(notes.TransactorFor(d)))
	ctx := context.Background()

	keep, err := svc.Create(ctx, "u1", notes.Input{Title: "keep", Description: "kept", Format: notes.FormatMarkdown})
	require.NoError(t, err)
	binned, err := svc.Create(ctx, "u1", notes.Input{Title: "binned", Description: "gone", Format: notes.FormatMarkdown})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, "u1", binned.ID))
	_, err = svc.Create(ctx, "u2", notes.Input{Title: "other", Description: "not mine", Format: notes.FormatMarkdown})
	require.NoError(t, err)

	store := s3client.TestClient(t, "exports-test")
	res, err := NewExporter(svc, store, fake).Run(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "exports/u1/20260301T120000Z.json", res.Key)
	assert.Equal(t, 1, res.Notes)
	assert.Equal(t, 1, res.Binned)
	assert.Equal(t, epoch.Add(LinkTTL), res.ExpiresAt)

	raw, err := store.GetObject(ctx, res.Key)
	require.NoError(t, err)
	var got notes.Export
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Notes, 1)
	assert.Equal(t, keep.ID, got.Notes[0].ID)
	require.Len(t, got.RecycleBin, 1)
	assert.Equal(t, binned.ID, got.RecycleBin[0].ID)

	resp, err := http.Get(res.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, string(raw), string(body))

	keys, err := store.ListKeys(ctx, "exports/u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{res.Key}, keys)
}

func TestRun_RequiresUser(t *testing.T) {
	t.Parallel()
	_, err := NewExporter(nil, nil, nil).Run(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}

func (failingStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("unreachable")
}

func (failingStore) ListKeys(context.Context, string) ([]string, error) {
	return nil, errors.New("unreachable")
}

func (failingStore) DeleteObjects(context.Context, []string) error {
	return errors.New("unreachable")
}

func TestRun_UploadFailure(t *testing.T) {
	t.Parallel()
	d := testdb.New(t)
	svc := notes.NewService(d, entitlement.NewResolver(d))
	_, err := NewExporter(svc, failingStore{}, nil).Run(context.Background(), "u1")
	assert.ErrorContains(t, err, "upload export")
}

func TestRun_KeepsNewestExports(t *testing.T) {
	t.Parallel()
	d := testdb.New(t)
	fake := clock.NewFake(epoch)
	svc := notes.NewService(d, entitlement.NewResolver(d), notes.WithClock(fake))
	ctx := context.Background()
	_, err := svc.Create(ctx, "u1", notes.Input{Title: "a", Description: "b", Format: notes.FormatMarkdown})
	require.NoError(t, err)

	store := s3client.TestClient(t, "exports-prune")
	exp := NewExporter(svc, store, fake)
	var written []string
	for i := 0; i < KeepPerUser+2; i++ {
		res, err := exp.Run(ctx, "u1")
		require.NoError(t, err)
		written = append(written, res.Key)
		fake.Advance(time.Hour)
	}
	_, err = NewExporter(svc, store, fake).Run(ctx, "u2")
	require.NoError(t, err)

	keys, err := store.ListKeys(ctx, "exports/u1/")
	require.NoError(t, err)
	assert.Equal(t, written[len(written)-KeepPerUser:], keys)

	others, err := store.ListKeys(ctx, "exports/u2/")
	require.NoError(t, err)
	assert.Len(t, others, 1, "pruning is scoped to the exporting user")
}
