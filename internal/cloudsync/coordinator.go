package cloudsync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"malsori/internal/model"
	"malsori/internal/repository"
)

// Authenticator is the slice of the identity layer the coordinator needs.
type Authenticator interface {
	IsAuthenticated() bool
	Revoke(ctx context.Context) error
}

// State of the coordinator.
type State string

const (
	StateIdle            State = "idle"
	StateActive          State = "active"
	StatePendingConflict State = "pending_conflict"
)

// lastAccountKeySetting is the settings key holding the identity key of the
// account this store last synced with.
const lastAccountKeySetting = "last_synced_account_key"

// Coordinator wraps identity changes around the sync manager's lifecycle.
// When a newly presented remote identity differs from the one this local
// store last synced with, no sync runs until the user picks merge, replace,
// or cancel.
type Coordinator struct {
	settings repository.SettingsRepository
	records  repository.TranscriptionRepository
	auth     Authenticator

	mu         sync.Mutex
	state      State
	manager    *Manager
	accountKey string
	pending    *Manager
	pendingKey string
}

func NewCoordinator(settings repository.SettingsRepository, records repository.TranscriptionRepository, auth Authenticator) *Coordinator {
	return &Coordinator{
		settings: settings,
		records:  records,
		auth:     auth,
		state:    StateIdle,
	}
}

// HandleSignIn reacts to a remote identity becoming available. candidate is
// a manager already bound to the new identity's remote store. Identity
// resolution failures degrade to local-only mode instead of erroring.
func (c *Coordinator) HandleSignIn(ctx context.Context, candidate *Manager) error {
	key, err := candidate.AccountKey(ctx)
	if err != nil {
		log.Printf("[Account] no account key available, staying local-only: %v", err)
		return nil
	}

	prior, err := c.settings.GetSetting(ctx, lastAccountKeySetting)
	if err != nil {
		log.Printf("[Account] reading last-synced account key failed, staying local-only: %v", err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prior == "" || prior == key {
		return c.activate(ctx, candidate, key)
	}

	log.Printf("[Account] identity conflict: last synced with a different account, awaiting resolution")
	c.state = StatePendingConflict
	c.pending = candidate
	c.pendingKey = key
	return nil
}

// Merge resolves a pending conflict by unifying: the new account's records
// are pulled and all existing local records are pushed into its namespace.
func (c *Coordinator) Merge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingConflict {
		return fmt.Errorf("no pending account conflict")
	}
	m, key := c.takePending()
	return c.activate(ctx, m, key)
}

// Replace resolves a pending conflict by discarding local state: every local
// table is cleared in one transaction, then the new account is pulled clean.
func (c *Coordinator) Replace(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingConflict {
		return fmt.Errorf("no pending account conflict")
	}

	if err := c.records.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear local records: %w", err)
	}
	m, key := c.takePending()
	return c.activate(ctx, m, key)
}

// Cancel resolves a pending conflict by walking away: the candidate manager
// is discarded, no identity key is persisted, and the credential is revoked
// so the conflict does not silently re-trigger.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingConflict {
		return fmt.Errorf("no pending account conflict")
	}

	c.pending = nil
	c.pendingKey = ""
	c.state = StateIdle

	if err := c.auth.Revoke(ctx); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}

// HandleSignOut reacts to the identity becoming unavailable. Retry state not
// yet flushed stays valid; it lives in the record store, not the manager.
func (c *Coordinator) HandleSignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manager != nil {
		c.manager.Stop()
		c.manager = nil
	}
	c.pending = nil
	c.pendingKey = ""
	c.accountKey = ""
	c.state = StateIdle
}

// activate persists the identity key, promotes m to the active manager, and
// starts its auto-sync loop (which runs one pass immediately).
// Caller holds c.mu.
func (c *Coordinator) activate(ctx context.Context, m *Manager, key string) error {
	if err := c.settings.SetSetting(ctx, lastAccountKeySetting, key); err != nil {
		return fmt.Errorf("persist account key: %w", err)
	}
	c.manager = m
	c.accountKey = key
	c.state = StateActive
	m.Start()
	log.Printf("[Account] sync active for account %s", key)
	return nil
}

// takePending detaches the pending candidate. Caller holds c.mu.
func (c *Coordinator) takePending() (*Manager, string) {
	m, key := c.pending, c.pendingKey
	c.pending = nil
	c.pendingKey = ""
	return m, key
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsSyncing reports whether the active manager has a pass in flight.
func (c *Coordinator) IsSyncing() bool {
	c.mu.Lock()
	m := c.manager
	c.mu.Unlock()
	return m != nil && m.IsSyncing()
}

// LastSyncedAt returns when the active manager last finished a pass.
func (c *Coordinator) LastSyncedAt() time.Time {
	c.mu.Lock()
	m := c.manager
	c.mu.Unlock()
	if m == nil {
		return time.Time{}
	}
	return m.LastSyncedAt()
}

// SyncNow runs one reconciliation pass on the active manager.
func (c *Coordinator) SyncNow(ctx context.Context) (model.SyncResult, error) {
	c.mu.Lock()
	m := c.manager
	c.mu.Unlock()
	if m == nil {
		return model.SyncResult{}, fmt.Errorf("no active sync manager")
	}
	return m.RunPass(ctx)
}

// DownloadRecord fetches a ghost record's content via the active manager.
func (c *Coordinator) DownloadRecord(ctx context.Context, id string) error {
	c.mu.Lock()
	m := c.manager
	c.mu.Unlock()
	if m == nil {
		return fmt.Errorf("no active sync manager")
	}
	return m.DownloadFullRecord(ctx, id)
}
