// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lease"
	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/payment"
)

// =============================================================================
// MEMORY STORE - Map-backed implementation of every lifecycle interface
// =============================================================================

// Store holds everything in maps guarded by one mutex. It implements
// LeaseStore, PaymentStore, SweepRunStore, PropertyCatalog and Directory.
type Store struct {
	mu         sync.RWMutex
	leases     map[string]lease.Lease
	payments   map[string]payment.Payment
	properties map[string]lifecycle.Property
	users      map[string]lifecycle.User
	runs       []lifecycle.SweepRun
}

func New() *Store {
	return &Store{
		leases:     make(map[string]lease.Lease),
		payments:   make(map[string]payment.Payment),
		properties: make(map[string]lifecycle.Property),
		users:      make(map[string]lifecycle.User),
	}
}

// =============================================================================
// LEASE STORE
// =============================================================================

// SaveLease inserts or replaces a lease. Inserting a second ACTIVE lease
// for the same property fails, mirroring the sqlite partial unique index.
func (s *Store) SaveLease(_ context.Context, l lease.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Status == lease.StatusActive {
		for _, other := range s.leases {
			if other.PropertyID == l.PropertyID && other.Status == lease.StatusActive && other.ID != l.ID {
				return &lease.AlreadyExistsError{PropertyID: l.PropertyID}
			}
		}
	}
	s.leases[l.ID] = l
	return nil
}

func (s *Store) GetLease(_ context.Context, id string) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leases[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (s *Store) GetLeaseByApplication(_ context.Context, applicationID string) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leases {
		if l.ApplicationID != "" && l.ApplicationID == applicationID {
			out := l
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ActiveLeaseForProperty(_ context.Context, propertyID string) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leases {
		if l.PropertyID == propertyID && l.Status == lease.StatusActive {
			out := l
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListLeasesByTenant(_ context.Context, tenantID string, status lease.Status, page lifecycle.Page) ([]lease.Lease, int, error) {
	return s.listLeases(func(l lease.Lease) bool { return l.TenantID == tenantID }, status, page)
}

func (s *Store) ListLeasesByLandlord(_ context.Context, landlordID string, status lease.Status, page lifecycle.Page) ([]lease.Lease, int, error) {
	return s.listLeases(func(l lease.Lease) bool { return l.LandlordID == landlordID }, status, page)
}

func (s *Store) listLeases(match func(lease.Lease) bool, status lease.Status, page lifecycle.Page) ([]lease.Lease, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []lease.Lease
	for _, l := range s.leases {
		if !match(l) {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return pageOf(all, page), len(all), nil
}

func (s *Store) ExpiredActiveLeases(_ context.Context, today time.Time) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []lease.Lease
	for _, l := range s.leases {
		if l.Status == lease.StatusActive && dates.Before(l.EndDate, dates.Day(today)) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LeasesEndingBetween(_ context.Context, landlordID string, from, to time.Time) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = dates.Day(from), dates.Day(to)
	var out []lease.Lease
	for _, l := range s.leases {
		if l.LandlordID != landlordID || l.Status != lease.StatusActive {
			continue
		}
		if dates.Before(l.EndDate, from) || dates.After(l.EndDate, to) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

// SavePayments inserts a batch atomically: any duplicate id fails the
// whole batch before anything is written.
func (s *Store) SavePayments(_ context.Context, payments []payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payments {
		if _, exists := s.payments[p.ID]; exists {
			return fmt.Errorf("payment %s already exists", p.ID)
		}
	}
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return nil
}

// SavePayment inserts or replaces a payment. A settled payment (PAID or
// CONFIRMED) only accepts replacements that keep it settled, mirroring the
// guarded sqlite upsert: paid history never reverts to an owed state.
func (s *Store) SavePayment(_ context.Context, p payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.payments[p.ID]; ok && cur.Status.Settled() && !p.Status.Settled() {
		return nil
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payments[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *Store) CountPaymentsForLease(_ context.Context, leaseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.payments {
		if p.LeaseID == leaseID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListPaymentsByLease(_ context.Context, leaseID string) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payment.Payment
	for _, p := range s.payments {
		if p.LeaseID == leaseID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListPaymentsByTenant(_ context.Context, tenantID string, status payment.Status, page lifecycle.Page) ([]payment.Payment, int, error) {
	return s.listPayments(func(p payment.Payment) bool { return p.TenantID == tenantID }, status, page)
}

func (s *Store) ListPaymentsByLandlord(_ context.Context, landlordID string, status payment.Status, page lifecycle.Page) ([]payment.Payment, int, error) {
	return s.listPayments(func(p payment.Payment) bool { return p.LandlordID == landlordID }, status, page)
}

func (s *Store) listPayments(match func(payment.Payment) bool, status payment.Status, page lifecycle.Page) ([]payment.Payment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []payment.Payment
	for _, p := range s.payments {
		if !match(p) {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].DueDate.Equal(all[j].DueDate) {
			return all[i].DueDate.After(all[j].DueDate)
		}
		return all[i].ID < all[j].ID
	})
	return pageOf(all, page), len(all), nil
}

func (s *Store) AllPaymentsByTenant(_ context.Context, tenantID string) ([]payment.Payment, error) {
	return s.allPayments(func(p payment.Payment) bool { return p.TenantID == tenantID }), nil
}

func (s *Store) AllPaymentsByLandlord(_ context.Context, landlordID string) ([]payment.Payment, error) {
	return s.allPayments(func(p payment.Payment) bool { return p.LandlordID == landlordID }), nil
}

func (s *Store) allPayments(match func(payment.Payment) bool) []payment.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payment.Payment
	for _, p := range s.payments {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) OverduePendingPayments(_ context.Context, today time.Time) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := dates.Day(today)
	var out []payment.Payment
	for _, p := range s.payments {
		if p.Status == payment.StatusPending && dates.Before(p.DueDate, day) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpcomingPayments(_ context.Context, tenantID string, from, to time.Time) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = dates.Day(from), dates.Day(to)
	var out []payment.Payment
	for _, p := range s.payments {
		if p.TenantID != tenantID || p.Status != payment.StatusPending {
			continue
		}
		if dates.Before(p.DueDate, from) || dates.After(p.DueDate, to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// =============================================================================
// SWEEP RUN STORE
// =============================================================================

func (s *Store) SaveSweepRun(_ context.Context, run lifecycle.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *Store) ListSweepRuns(_ context.Context, kind string, limit int) ([]lifecycle.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []lifecycle.SweepRun
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && s.runs[i].Kind != kind {
			continue
		}
		out = append(out, s.runs[i])
	}
	return out, nil
}

// =============================================================================
// COLLABORATORS - Property catalog and user directory
// =============================================================================

func (s *Store) PutProperty(p lifecycle.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
}

func (s *Store) GetProperty(_ context.Context, id string) (*lifecycle.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.properties[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *Store) SetPropertyStatus(_ context.Context, id string, status lifecycle.PropertyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return fmt.Errorf("property %s: %w", id, lifecycle.ErrPropertyNotFound)
	}
	p.Status = status
	s.properties[id] = p
	return nil
}

func (s *Store) PutUser(u lifecycle.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) GetUser(_ context.Context, id string) (*lifecycle.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func pageOf[T any](all []T, page lifecycle.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
