package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storecore/internal/core/domain"
	"storecore/internal/port"
)

// ReservationService owns the lifecycle of product claims. Exclusivity rests
// on two guards: a per-product hold in the cache (fast path) and the
// conditional reservation insert in the ledger (authoritative).
type ReservationService struct {
	repo  port.LedgerRepository
	cache port.CacheRepository
	log   zerolog.Logger
	now   func() time.Time
}

func NewReservationService(repo port.LedgerRepository, cache port.CacheRepository, log zerolog.Logger) *ReservationService {
	return &ReservationService{repo: repo, cache: cache, log: log, now: time.Now}
}

// Reserve grants holderID an exclusive 24h claim on the product. Calling it
// again with the same holder returns the existing reservation id.
func (s *ReservationService) Reserve(ctx context.Context, productID, holderID, holderName, holderEmail string) (string, error) {
	active, err := s.GetActive(ctx, productID)
	if err != nil {
		return "", err
	}
	if active != nil {
		if active.HolderID == holderID {
			return active.ID, nil
		}
		return "", &AlreadyClaimedError{HolderName: active.HolderName, ExpiresAt: active.ExpiresAt}
	}

	ok, err := s.cache.AcquireHold(ctx, productID, holderID, domain.HoldDuration)
	if err != nil {
		// The hold is a fast path only; the conditional insert below stays
		// authoritative, so a cache outage degrades rather than blocks.
		s.log.Warn().Err(err).Str("product_id", productID).Msg("hold acquire failed, falling through to ledger")
	} else if !ok {
		if active, err = s.GetActive(ctx, productID); err != nil {
			return "", err
		}
		if active != nil {
			if active.HolderID == holderID {
				return active.ID, nil
			}
			return "", &AlreadyClaimedError{HolderName: active.HolderName, ExpiresAt: active.ExpiresAt}
		}
		// Orphaned hold with no live claim behind it; the ledger decides.
	}

	now := s.now()
	r := domain.Reservation{
		ID:          uuid.New().String(),
		ProductID:   productID,
		HolderID:    holderID,
		HolderName:  holderName,
		HolderEmail: holderEmail,
		Status:      domain.ReservationStatusActive,
		ReservedAt:  now,
		ExpiresAt:   now.Add(domain.HoldDuration),
	}

	ok, err = s.repo.CreateReservation(ctx, r)
	if err != nil {
		return "", err
	}
	if !ok {
		// Lost the write race to a concurrent session.
		if active, err = s.GetActive(ctx, productID); err != nil {
			return "", err
		}
		if active == nil {
			return "", &AlreadyClaimedError{HolderName: "another shopper"}
		}
		if active.HolderID == holderID {
			return active.ID, nil
		}
		return "", &AlreadyClaimedError{HolderName: active.HolderName, ExpiresAt: active.ExpiresAt}
	}

	s.log.Info().
		Str("product_id", productID).
		Str("holder_id", holderID).
		Str("reservation_id", r.ID).
		Msg("reservation granted")
	return r.ID, nil
}

// GetActive returns the newest live claim for the product, or nil. Overdue
// claims are demoted to expired as a side effect (lazy expiry), and so are
// duplicate live claims beyond the newest, so the set converges to one.
func (s *ReservationService) GetActive(ctx context.Context, productID string) (*domain.Reservation, error) {
	rs, err := s.repo.ActiveReservations(ctx, productID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var live *domain.Reservation
	for i := range rs {
		r := rs[i]
		if r.ExpiredAt(now) {
			if _, err := s.repo.TransitionReservation(ctx, r.ID, domain.ReservationStatusActive, domain.ReservationStatusExpired); err != nil {
				return nil, err
			}
			continue
		}
		if live == nil {
			live = &r
			continue
		}
		// Should be unreachable given the conditional insert; demote the
		// older duplicate so only the newest claim stays live.
		if _, err := s.repo.TransitionReservation(ctx, r.ID, domain.ReservationStatusActive, domain.ReservationStatusExpired); err != nil {
			return nil, err
		}
		s.log.Warn().Str("product_id", productID).Str("reservation_id", r.ID).Msg("duplicate active reservation demoted")
	}
	return live, nil
}

// Availability is the read model for the storefront's product page.
type Availability struct {
	Available  bool
	HolderID   string
	HolderName string
	ExpiresAt  time.Time
	ExpiresIn  string
}

// CheckAvailability reports whether holderID may proceed to checkout.
func (s *ReservationService) CheckAvailability(ctx context.Context, productID, holderID string) (Availability, error) {
	active, err := s.GetActive(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	if active == nil || active.HolderID == holderID {
		return Availability{Available: true}, nil
	}
	return Availability{
		Available:  false,
		HolderID:   active.HolderID,
		HolderName: active.HolderName,
		ExpiresAt:  active.ExpiresAt,
		ExpiresIn:  domain.RemainingLabel(active.ExpiresAt, s.now()),
	}, nil
}

// Release cancels the holder's active claim. Releasing a product with no
// active claim succeeds as a no-op.
func (s *ReservationService) Release(ctx context.Context, productID, holderID string) error {
	active, err := s.GetActive(ctx, productID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}
	if active.HolderID != holderID {
		return ErrNotOwner
	}
	if _, err := s.repo.TransitionReservation(ctx, active.ID, domain.ReservationStatusActive, domain.ReservationStatusCancelled); err != nil {
		return err
	}
	if err := s.cache.ReleaseHold(ctx, productID, holderID); err != nil {
		s.log.Warn().Err(err).Str("product_id", productID).Msg("hold release failed, TTL will reclaim it")
	}
	s.log.Info().Str("product_id", productID).Str("holder_id", holderID).Msg("reservation released")
	return nil
}

// Complete marks the holder's claim completed after a successful order.
// Best-effort: returns false without error when the claim is missing or
// owned by someone else.
func (s *ReservationService) Complete(ctx context.Context, productID, holderID string) (bool, error) {
	active, err := s.GetActive(ctx, productID)
	if err != nil {
		return false, err
	}
	if active == nil || active.HolderID != holderID {
		return false, nil
	}
	ok, err := s.repo.TransitionReservation(ctx, active.ID, domain.ReservationStatusActive, domain.ReservationStatusCompleted)
	if err != nil {
		return false, err
	}
	if ok {
		if err := s.cache.ReleaseHold(ctx, productID, holderID); err != nil {
			s.log.Warn().Err(err).Str("product_id", productID).Msg("hold release failed, TTL will reclaim it")
		}
	}
	return ok, nil
}

// SweepExpired demotes every overdue active claim in one pass. Runs on a
// schedule so staleness windows stay bounded even without readers.
func (s *ReservationService) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int("expired", n).Msg("reservation sweep")
	}
	return n, nil
}
