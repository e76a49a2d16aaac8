package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"staking-ledger/config"
	"staking-ledger/metrics"
	"staking-ledger/models"
	"staking-ledger/store"
)

// SessionManager ties staking ticks to open sessions. Each session gets one
// gocron job that evaluates its account immediately and then every poll
// interval until the session is closed or expires.
type SessionManager struct {
	repo    *store.Repository
	ledger  *LedgerService
	sched   gocron.Scheduler
	jobs    *xsync.Map[string, uuid.UUID]
	notices *xsync.Map[string, string]
	secret  []byte
	ttl     time.Duration
	poll    time.Duration
	logger  *zap.SugaredLogger
}

func NewSessionManager(repo *store.Repository, ledger *LedgerService, cfg config.Session, logger *zap.SugaredLogger) (*SessionManager, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	sched.Start()

	return &SessionManager{
		repo:    repo,
		ledger:  ledger,
		sched:   sched,
		jobs:    xsync.NewMap[string, uuid.UUID](),
		notices: xsync.NewMap[string, string](),
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TTL,
		poll:    cfg.PollInterval,
		logger:  logger.Named("session"),
	}, nil
}

func (m *SessionManager) now() time.Time {
	return m.ledger.now()
}

// Open persists a session for the account, arms its staking job and returns
// the signed token the client presents on later calls.
func (m *SessionManager) Open(ctx context.Context, accountID int64) (*models.Session, string, error) {
	now := m.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.PutSession(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := m.sign(sess)
	if err != nil {
		_ = m.repo.DeleteSession(ctx, sess.ID)
		return nil, "", err
	}

	if err := m.arm(sess); err != nil {
		_ = m.repo.DeleteSession(ctx, sess.ID)
		return nil, "", err
	}
	m.logger.Infof("[SESSION] opened %s for account %d", sess.ID, accountID)
	return sess, token, nil
}

func (m *SessionManager) sign(sess *models.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   strconv.FormatInt(sess.AccountID, 10),
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Resolve validates a token and returns its live session.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*models.Session, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrSessionInvalid
	}

	sess, err := m.repo.GetSession(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if claims.Subject != strconv.FormatInt(sess.AccountID, 10) || sess.Expired(m.now()) {
		return nil, ErrSessionInvalid
	}
	return sess, nil
}

// Close cancels the staking job and forgets the session.
func (m *SessionManager) Close(ctx context.Context, sessionID string) error {
	m.disarm(sessionID)
	m.notices.Delete(sessionID)
	if err := m.repo.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.logger.Infof("[SESSION] closed %s", sessionID)
	return nil
}

// Restore re-arms persisted sessions after a restart and drops expired ones.
func (m *SessionManager) Restore(ctx context.Context) (int, error) {
	sessions, err := m.repo.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	now := m.now()
	restored := 0
	for _, sess := range sessions {
		if sess.Expired(now) {
			if err := m.Close(ctx, sess.ID); err != nil {
				m.logger.Warnf("[SESSION] failed to drop expired %s: %v", sess.ID, err)
			}
			continue
		}
		if err := m.arm(sess); err != nil {
			m.logger.Errorf("[SESSION] failed to restore %s: %v", sess.ID, err)
			continue
		}
		restored++
	}
	return restored, nil
}

// SweepExpired closes every session past its expiry.
func (m *SessionManager) SweepExpired(ctx context.Context) (int, error) {
	sessions, err := m.repo.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	now := m.now()
	swept := 0
	for _, sess := range sessions {
		if !sess.Expired(now) {
			continue
		}
		if err := m.Close(ctx, sess.ID); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// Armed reports whether a staking job is scheduled for the session.
func (m *SessionManager) Armed(sessionID string) bool {
	_, ok := m.jobs.Load(sessionID)
	return ok
}

// PopNotice returns and clears the latest staking notice for the session.
func (m *SessionManager) PopNotice(sessionID string) (string, bool) {
	return m.notices.LoadAndDelete(sessionID)
}

func (m *SessionManager) Shutdown() error {
	return m.sched.Shutdown()
}

func (m *SessionManager) arm(sess *models.Session) error {
	if _, ok := m.jobs.Load(sess.ID); ok {
		return nil
	}
	job, err := m.sched.NewJob(
		gocron.DurationJob(m.poll),
		gocron.NewTask(m.tick, sess.ID, sess.AccountID),
		gocron.WithName("staking:"+sess.ID),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule staking job: %w", err)
	}
	m.jobs.Store(sess.ID, job.ID())
	metrics.ActiveSessions.Inc()
	return nil
}

func (m *SessionManager) disarm(sessionID string) {
	id, ok := m.jobs.LoadAndDelete(sessionID)
	if !ok {
		return
	}
	if err := m.sched.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		m.logger.Warnf("[SESSION] failed to remove job for %s: %v", sessionID, err)
	}
	metrics.ActiveSessions.Dec()
}

func (m *SessionManager) tick(sessionID string, accountID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := m.ledger.AccrueStaking(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		m.logger.Warnf("[SESSION] account %d gone, closing %s", accountID, sessionID)
		_ = m.Close(ctx, sessionID)
		return
	}
	if err != nil {
		m.logger.Errorf("[STAKING] tick for account %d failed: %v", accountID, err)
		return
	}
	if res.Paid {
		m.notices.Store(sessionID, StakingRewardNotice(m.ledger.rules.StakingReward))
	}
}
