package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const purgeTimeout = 30 * time.Second

// Housekeeper runs periodic cleanup.  Only expired password reset tokens
// are purged; expired sessions stay until their user is deleted.
type Housekeeper struct {
	resets ResetTokenStore
	log    *logrus.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// NewHousekeeper schedules the purge job on spec, a cron expression or a
// descriptor such as "@every 1h".  Call Start to begin running it.
func NewHousekeeper(resets ResetTokenStore, spec string, log *logrus.Logger) (*Housekeeper, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Housekeeper{resets: resets, log: log, cron: cron.New(), now: utcNow}
	if _, err := h.cron.AddFunc(spec, h.runPurge); err != nil {
		return nil, fmt.Errorf("schedule reset token purge %q: %w", spec, err)
	}
	return h, nil
}

func (h *Housekeeper) Start() { h.cron.Start() }

// Stop halts the scheduler and waits for a running job to finish.
func (h *Housekeeper) Stop() {
	<-h.cron.Stop().Done()
}

func (h *Housekeeper) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if _, err := h.PurgeExpiredResetTokens(ctx); err != nil {
		h.log.WithError(err).Error("reset token purge failed")
	}
}

// PurgeExpiredResetTokens deletes reset tokens past their expiry.
func (h *Housekeeper) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	n, err := h.resets.PurgeExpired(ctx, h.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		h.log.WithField("count", n).Info("purged expired reset tokens")
	}
	return n, nil
}
