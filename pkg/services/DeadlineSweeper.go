package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/alitto/pond/v2"
	"github.com/rfberaldo/sqlz"
)

type DeadlineSweeperConfig struct {
	DB            *sqlz.DB
	Notifications NotificationServicer
	WarningWindow time.Duration
	MaxWorkers    int
	Now           func() time.Time
}

/*
DeadlineSweeper advances sessions whose selection deadline is near or gone.
Each session is handled in its own transaction; the warning_sent and
expired_sent flags are flipped with a compare-and-set in the same
transaction as the notification, so overlapping sweeps never notify twice.
*/
type DeadlineSweeper struct {
	config  DeadlineSweeperConfig
	ticker  *time.Ticker
	stop    chan struct{}
	wg      *sync.WaitGroup
	running atomic.Bool
}

type SweepResult struct {
	Warned  int
	Expired int
	Failed  int
}

type sweepCandidate struct {
	ID       uint   `db:"id"`
	TenantID uint   `db:"tenant_id"`
	Name     string `db:"name"`
}

const defaultWarningWindow = 72 * time.Hour

func NewDeadlineSweeper(config DeadlineSweeperConfig) *DeadlineSweeper {
	if config.WarningWindow <= 0 {
		config.WarningWindow = defaultWarningWindow
	}

	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 4
	}

	if config.Now == nil {
		config.Now = time.Now
	}

	return &DeadlineSweeper{
		config: config,
		wg:     &sync.WaitGroup{},
	}
}

/*
Start runs a sweep right away and then on every interval. A tick that
arrives while the previous sweep is still going is skipped.
*/
func (s *DeadlineSweeper) Start(interval time.Duration) {
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(interval)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.runOnce()

		for {
			select {
			case <-s.ticker.C:
				s.runOnce()

			case <-s.stop:
				s.ticker.Stop()
				return
			}
		}
	}()

	slog.Info("deadline sweeper started", "interval", interval)
}

func (s *DeadlineSweeper) Stop() {
	if s.ticker != nil {
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		slog.Info("deadline sweeper stopped")
	}
}

/*
Sweep runs the warning pass and then the expiry pass. A failure on one
session is counted and logged and never stops the others; only failing to
read the candidate list is returned as an error.
*/
func (s *DeadlineSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		err    error
		result SweepResult
	)

	now := s.config.Now().UTC()
	horizon := now.Add(s.config.WarningWindow)

	warnSql := `
SELECT
   s.id
   , s.tenant_id
   , s.name
FROM sessions AS s
WHERE 1=1
   AND s.is_active=1
   AND s.mode='selection'
   AND s.status IN ` + openStatusList + `
   AND s.deadline IS NOT NULL
   AND s.deadline > ?
   AND s.deadline <= ?
   AND s.warning_sent=0
ORDER BY s.id
`

	markWarnedSql := `
UPDATE sessions SET
   warning_sent=1
WHERE 1=1
   AND id=?
   AND status IN ` + openStatusList + `
   AND deadline IS NOT NULL
   AND deadline > ?
   AND deadline <= ?
   AND warning_sent=0
`

	expireSql := `
SELECT
   s.id
   , s.tenant_id
   , s.name
FROM sessions AS s
WHERE 1=1
   AND s.is_active=1
   AND s.mode='selection'
   AND s.status IN ` + openStatusList + `
   AND s.deadline IS NOT NULL
   AND s.deadline <= ?
   AND s.expired_sent=0
ORDER BY s.id
`

	markExpiredSql := `
UPDATE sessions SET
   status='expired'
   , expired_sent=1
   , updated_at=?
WHERE 1=1
   AND id=?
   AND status IN ` + openStatusList + `
   AND deadline IS NOT NULL
   AND deadline <= ?
   AND expired_sent=0
`

	nowStamp := database.Timestamp(now)
	horizonStamp := database.Timestamp(horizon)

	warned, warnFailed, err := s.pass(ctx, warnSql, []any{nowStamp, horizonStamp}, func(candidate sweepCandidate) (string, []any, models.Notification) {
		return markWarnedSql, []any{candidate.ID, nowStamp, horizonStamp}, s.notification(candidate, models.NotificationDeadlineWarning,
			fmt.Sprintf("The selection deadline for session '%s' is less than %s away", candidate.Name, humanWindow(s.config.WarningWindow)))
	})

	if err != nil {
		return result, err
	}

	expired, expireFailed, err := s.pass(ctx, expireSql, []any{nowStamp}, func(candidate sweepCandidate) (string, []any, models.Notification) {
		return markExpiredSql, []any{nowStamp, candidate.ID, nowStamp}, s.notification(candidate, models.NotificationDeadlineExpired,
			fmt.Sprintf("The selection deadline for session '%s' has passed and the selection was closed", candidate.Name))
	})

	result = SweepResult{
		Warned:  warned,
		Expired: expired,
		Failed:  warnFailed + expireFailed,
	}

	return result, err
}

/*
pass loads the candidates and fans them out over a worker pool. Each task
runs one guarded update and, only if that update took, writes the
notification in the same transaction.
*/
func (s *DeadlineSweeper) pass(
	ctx context.Context,
	selectSql string,
	selectArgs []any,
	build func(candidate sweepCandidate) (string, []any, models.Notification),
) (int, int, error) {
	var (
		err        error
		candidates []sweepCandidate
		applied    atomic.Int64
		failed     atomic.Int64
	)

	queryCtx, cancel := withTimeout(ctx)
	err = queryAll(queryCtx, s.config.DB, &candidates, selectSql, selectArgs...)
	cancel()

	if err != nil {
		return 0, 0, models.Transient(err, "error querying deadline candidates")
	}

	if len(candidates) == 0 {
		return 0, 0, nil
	}

	pool := pond.NewPool(s.config.MaxWorkers, pond.WithContext(ctx))

	for _, candidate := range candidates {
		pool.Submit(func() {
			updateSql, updateArgs, notification := build(candidate)

			ok, err := s.apply(ctx, updateSql, updateArgs, notification)

			switch {
			case err != nil:
				failed.Add(1)
				slog.Error("error sweeping session deadline", "sessionID", candidate.ID, "type", notification.Type, "error", err)

			case ok:
				applied.Add(1)
			}
		})
	}

	_ = pool.Stop().Wait()

	return int(applied.Load()), int(failed.Load()), nil
}

func (s *DeadlineSweeper) apply(ctx context.Context, updateSql string, updateArgs []any, notification models.Notification) (bool, error) {
	var (
		emitted  models.Notification
		recorded bool
	)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.config.DB.Begin(ctx)
	if err != nil {
		return false, err
	}

	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(ctx, updateSql, updateArgs...)
	if err != nil {
		return false, err
	}

	if rowsAffected(result) == 0 {
		return false, nil
	}

	emitted, recorded = s.config.Notifications.EmitInTx(ctx, tx, notification)

	if err = tx.Commit(); err != nil {
		if database.IsBusy(err) {
			return false, models.Transient(err, models.ReasonTryAgain)
		}

		return false, err
	}

	if recorded {
		s.config.Notifications.Mirror(emitted)
	}

	return true, nil
}

func (s *DeadlineSweeper) notification(candidate sweepCandidate, notificationType models.NotificationType, message string) models.Notification {
	id := candidate.ID

	return models.Notification{
		TenantID:  candidate.TenantID,
		Type:      notificationType,
		SessionID: &id,
		Message:   message,
	}
}

func (s *DeadlineSweeper) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		slog.Info("deadline sweeper already running. skipping...")
		return
	}

	defer s.running.Store(false)

	result, err := s.Sweep(context.Background())

	if err != nil {
		slog.Error("deadline sweep failed, retrying next cycle", "error", err)
		return
	}

	slog.Info("deadline sweep finished", "warned", result.Warned, "expired", result.Expired, "failed", result.Failed)
}

func humanWindow(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))

		if days == 1 {
			return "1 day"
		}

		return fmt.Sprintf("%d days", days)
	}

	return d.String()
}
