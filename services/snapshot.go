package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"staking-ledger/models"
	"staking-ledger/store"
)

// Snapshot is a one-way backup of both collections.
type Snapshot struct {
	TakenAt      time.Time             `json:"taken_at"`
	Accounts     []*models.Account     `json:"accounts"`
	Transactions []*models.Transaction `json:"transactions"`
}

// ObjectUploader stores a blob under key; utils.R2Client satisfies it.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

func (s *LedgerService) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	txs, err := s.repo.ListTransactions(ctx, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	return &Snapshot{TakenAt: s.now(), Accounts: accounts, Transactions: txs}, nil
}

// UploadSnapshot exports and uploads a snapshot, returning the object key.
func (s *LedgerService) UploadSnapshot(ctx context.Context, up ObjectUploader) (string, error) {
	snap, err := s.ExportSnapshot(ctx)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	key := SnapshotKey(snap.TakenAt)
	if err := up.Upload(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Infof("[SNAPSHOT] uploaded %s (%d accounts, %d transactions)", key, len(snap.Accounts), len(snap.Transactions))
	return key, nil
}

func SnapshotKey(t time.Time) string {
	return fmt.Sprintf("snapshots/ledger-%s.json", t.UTC().Format("20060102T150405Z"))
}
