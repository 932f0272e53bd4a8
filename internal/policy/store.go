package policy

import "github.com/google/uuid"

// Store is the in-memory ledger of policies, one slot per account.
// It is the single source of truth for policy state; the engine serializes
// all access, so the store itself carries no locking.
type Store struct {
	policies map[uuid.UUID]*Policy
}

func NewStore() *Store {
	return &Store{
		policies: make(map[uuid.UUID]*Policy),
	}
}

// Get returns the policy slot for an account, or nil if none was ever created.
func (s *Store) Get(account uuid.UUID) *Policy {
	return s.policies[account]
}

// Active returns the account's policy only if its IsActive flag is set.
// A filed claim does NOT clear IsActive; a claimed policy stays "active"
// until its duration lapses even though it can never claim again.
func (s *Store) Active(account uuid.UUID) *Policy {
	pol := s.policies[account]
	if pol == nil || !pol.IsActive {
		return nil
	}
	return pol
}

// Put stores a policy, overwriting any previous slot for the account.
func (s *Store) Put(pol *Policy) {
	s.policies[pol.Account] = pol
}

// ActiveCount returns the number of policies with IsActive set.
func (s *Store) ActiveCount() int {
	n := 0
	for _, pol := range s.policies {
		if pol.IsActive {
			n++
		}
	}
	return n
}

// All returns every policy slot (for snapshot creation).
func (s *Store) All() []*Policy {
	result := make([]*Policy, 0, len(s.policies))
	for _, pol := range s.policies {
		result = append(result, pol)
	}
	return result
}

// Restore directly sets a policy slot (used for snapshot restore).
func (s *Store) Restore(pol *Policy) {
	s.policies[pol.Account] = pol
}
