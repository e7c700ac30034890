package worker

import (
	"context"
	"testing"
	"time"

	"github.com/bonds-app/bonds/internal/db/dbtest"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupSweepsExpiredRecords(t *testing.T) {
	store := repository.NewVerificationRepository(dbtest.New(t))

	require.NoError(t, store.Create(&model.Verification{
		Email:      "stale@x.com",
		SecretHash: "hash",
		Kind:       model.KindLogin,
		Channel:    model.ChannelOTP,
		ExpiresAt:  time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.Create(&model.Verification{
		Email:      "fresh@x.com",
		SecretHash: "hash",
		Kind:       model.KindLogin,
		Channel:    model.ChannelOTP,
		ExpiresAt:  time.Now().Add(time.Hour),
	}))

	cleanup := NewCleanup(store, 10*time.Millisecond, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleanup.Run(ctx)
		close(done)
	}()

	// Give the ticker a few cycles to fire.
	assert.Eventually(t, func() bool {
		count, err := store.CountByEmailSince("stale@x.com", time.Now().Add(-2*time.Hour))
		return err == nil && count == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not stop on context cancel")
	}

	count, err := store.CountByEmailSince("fresh@x.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
