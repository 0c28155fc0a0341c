package storage

import (
	"context"
	"time"

	"github.com/tphummel/fit-drive/internal/log"
)

// CleanupManager periodically forgets consumed login token ids whose
// tokens have expired.
type CleanupManager struct {
	ledger   LoginTokenLedger
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(ledger LoginTokenLedger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		ledger:   ledger,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting login token cleanup manager", map[string]any{
		"interval": cm.interval.String(),
	})

	go cm.run(ctx)
}

// Stop gracefully stops the cleanup loop
func (cm *CleanupManager) Stop() {
	close(cm.stopChan)
	<-cm.doneChan
	log.Logf("Login token cleanup manager stopped")
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.ledger.CleanupExpiredLoginTokens(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to clean up login token ids", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Cleaned up expired login token ids", map[string]any{
			"count": count,
		})
	}
}
