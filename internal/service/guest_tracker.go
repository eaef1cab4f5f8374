package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verdict is the quota outcome for one guest message
type Verdict struct {
	Allowed   bool
	Remaining int
}

// GuestTracker issues anonymous session ids, counts messages against
// the quota, and expires stale guest sessions.
type GuestTracker struct {
	guests repository.GuestRepository
	quota  int
	maxAge time.Duration
	logger *zap.Logger
}

// NewGuestTracker creates a new guest tracker
func NewGuestTracker(guests repository.GuestRepository, quota int, maxAge time.Duration, logger *zap.Logger) *GuestTracker {
	return &GuestTracker{
		guests: guests,
		quota:  quota,
		maxAge: maxAge,
		logger: logger,
	}
}

// Quota returns the configured message quota
func (t *GuestTracker) Quota() int {
	return t.quota
}

// GetOrCreate returns the guest session for the id, creating a fresh
// one when the id is empty, malformed, or unknown. Cookies are client
// input; a forged value must not surface as a storage error.
func (t *GuestTracker) GetOrCreate(ctx context.Context, guestID string) (*domain.AnonymousSession, error) {
	if uuid.Validate(guestID) != nil {
		guestID = ""
	}

	if guestID != "" {
		guest, err := t.guests.GetByID(ctx, guestID)
		if err == nil {
			return guest, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load guest session: %w", err)
		}
	}

	guest := &domain.AnonymousSession{}
	if err := t.guests.Create(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to create guest session: %w", err)
	}

	return guest, nil
}

// RecordMessage increments the guest's message count if it is below
// quota and stores the message. At the limit the call is an idempotent
// no-op returning Allowed=false, not an error.
func (t *GuestTracker) RecordMessage(ctx context.Context, guestID, role, content string) (*Verdict, error) {
	if role == "" {
		role = "user"
	}

	msg := &domain.AnonymousMessage{Role: role, Content: content}

	count, allowed, err := t.guests.RecordMessage(ctx, guestID, t.quota, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to record guest message: %w", err)
	}

	remaining := t.quota - count
	if remaining < 0 {
		remaining = 0
	}

	return &Verdict{Allowed: allowed, Remaining: remaining}, nil
}

// SweepExpired deletes guest sessions idle longer than the max age.
// Pure housekeeping; authenticated data is never touched.
func (t *GuestTracker) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-t.maxAge)

	deleted, err := t.guests.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep guest sessions: %w", err)
	}

	return deleted, nil
}

// RunSweeper runs the expiry sweep on the given interval until the
// context is cancelled.
func (t *GuestTracker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := t.SweepExpired(ctx)
			if err != nil {
				t.logger.Error("guest sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				t.logger.Info("swept expired guest sessions", zap.Int64("deleted", deleted))
			}
		}
	}
}
