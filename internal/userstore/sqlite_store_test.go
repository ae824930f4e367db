package userstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "subgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_EnsureUserGrantsDefaultQuota(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.EnsureUser(ctx, "42", "ada", "Ada")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, DefaultAvailableMinutes, user.AvailableMinutes)
	assert.Equal(t, Settings{}, user.Settings)

	// a repeat contact refreshes the name but keeps quota untouched
	require.NoError(t, store.DebitMinutes(ctx, "42", 15))
	user, err = store.EnsureUser(ctx, "42", "ada", "Ada L.")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", user.Name)
	assert.Equal(t, DefaultAvailableMinutes-15, user.AvailableMinutes)
}

func TestSQLiteStore_GetUnknownUser(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user, err := store.GetUser(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSQLiteStore_SettingsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureUser(ctx, "7", "u", "U")
	require.NoError(t, err)

	want := Settings{
		Font:           "ProbaPro-Bold",
		FontSize:       22,
		BorderBox:      true,
		Language:       "DE",
		Resolution:     "720p",
		TranscribeOnly: false,
		DisplayMode:    true,
	}
	require.NoError(t, store.UpdateSettings(ctx, "7", want))

	user, err := store.GetUser(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, want, user.Settings)
}

func TestSQLiteStore_QuotaDebitAndCredit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureUser(ctx, "9", "u", "U")
	require.NoError(t, err)

	require.NoError(t, store.DebitMinutes(ctx, "9", 12))
	minutes, err := store.AvailableMinutes(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, DefaultAvailableMinutes-12, minutes)

	require.NoError(t, store.CreditMinutes(ctx, "9", 100))
	minutes, err = store.AvailableMinutes(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, DefaultAvailableMinutes-12+100, minutes)

	assert.Error(t, store.DebitMinutes(ctx, "nobody", 5))
}

func TestSQLiteStore_RequestHistory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureUser(ctx, "3", "u", "U")
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordRequest(ctx, RequestRecord{
			UserID:          "3",
			Username:        "u",
			Name:            "U",
			Link:            "https://example.com/v",
			SentAt:          base.Add(time.Duration(i) * time.Minute),
			DurationMinutes: 10 + i,
			Resolution:      "720p",
			Language:        "EN-US",
			Transcription:   i == 2,
		}))
	}

	records, err := store.RecentRequests(ctx, "3", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 12, records[0].DurationMinutes, "newest first")
	assert.True(t, records[0].Transcription)
	assert.Equal(t, 11, records[1].DurationMinutes)
}

func TestSQLiteStore_MigrationsApplyOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "subgen.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = store.EnsureUser(context.Background(), "1", "u", "U")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// reopening must not re-run migrations or lose data
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	user, err := store.GetUser(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, user)
}
