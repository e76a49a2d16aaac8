package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUploader struct {
	objects map[string][]byte
	err     error
}

func (m *memUploader) Upload(_ context.Context, key string, body []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = body
	return nil
}

func TestUploadSnapshot(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.register(t, "alice", "")
	_, err := l.RequestDeposit(ctx, a.ID, dec(25))
	require.NoError(t, err)

	up := &memUploader{}
	key, err := l.UploadSnapshot(ctx, up)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/ledger-20240301T120000Z.json", key)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(up.objects[key], &snap))
	assert.Len(t, snap.Accounts, 1)
	assert.Len(t, snap.Transactions, 1)
	assert.True(t, snap.TakenAt.Equal(l.clock.Now()))
}

func TestUploadSnapshot_UploadError(t *testing.T) {
	l := newTestLedger(t)
	boom := errors.New("bucket gone")
	_, err := l.UploadSnapshot(context.Background(), &memUploader{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestExportSnapshot_EmptyLedger(t *testing.T) {
	l := newTestLedger(t)
	snap, err := l.ExportSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Accounts)
	assert.NotNil(t, snap.Transactions)
}
