// Package access decides which telegram operators may talk to the agent.
// The bot authenticates to the agent service with its own credentials, so
// every operator allowed here acts with those credentials.
package access

import (
	"sort"
	"sync"
)

type Operator struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Repository interface {
	LoadAll() ([]Operator, error)
	Upsert(op Operator) error
	Remove(id int64) error
}

type Service struct {
	repo        Repository
	pendingRepo Repository
	adminID     int64

	mu      sync.RWMutex
	allowed map[int64]Operator
	pending map[int64]Operator
}

// New preloads allowed and pending operators from their repositories
// (either may be nil) and merges the ids from configuration. The admin is
// always allowed.
func New(repo, pendingRepo Repository, initial []int64, adminID int64) (*Service, error) {
	s := &Service{
		repo:        repo,
		pendingRepo: pendingRepo,
		adminID:     adminID,
		allowed:     make(map[int64]Operator),
		pending:     make(map[int64]Operator),
	}
	if err := load(repo, s.allowed); err != nil {
		return nil, err
	}
	if err := load(pendingRepo, s.pending); err != nil {
		return nil, err
	}
	for _, id := range initial {
		if _, ok := s.allowed[id]; !ok {
			s.allowed[id] = Operator{ID: id}
		}
	}
	for id := range s.allowed {
		delete(s.pending, id)
	}
	return s, nil
}

func load(repo Repository, into map[int64]Operator) error {
	if repo == nil {
		return nil
	}
	ops, err := repo.LoadAll()
	if err != nil {
		return err
	}
	for _, op := range ops {
		into[op.ID] = op
	}
	return nil
}

func (s *Service) AdminID() int64 { return s.adminID }

func (s *Service) IsAdmin(id int64) bool { return s.adminID != 0 && id == s.adminID }

func (s *Service) IsAllowed(id int64) bool {
	if s.IsAdmin(id) {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[id]
	return ok
}

func (s *Service) Allow(op Operator) error {
	s.mu.Lock()
	s.allowed[op.ID] = op
	_, wasPending := s.pending[op.ID]
	delete(s.pending, op.ID)
	s.mu.Unlock()
	if wasPending && s.pendingRepo != nil {
		if err := s.pendingRepo.Remove(op.ID); err != nil {
			return err
		}
	}
	if s.repo != nil {
		return s.repo.Upsert(op)
	}
	return nil
}

func (s *Service) Revoke(id int64) error {
	s.mu.Lock()
	delete(s.allowed, id)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(id)
	}
	return nil
}

// Request records an access request. It reports false when op already
// has one waiting, so the admin is asked only once.
func (s *Service) Request(op Operator) (bool, error) {
	s.mu.Lock()
	if _, ok := s.pending[op.ID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.pending[op.ID] = op
	s.mu.Unlock()
	if s.pendingRepo != nil {
		if err := s.pendingRepo.Upsert(op); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Approve allows a requester, keeping the username it asked with.
func (s *Service) Approve(id int64) (Operator, error) {
	s.mu.RLock()
	op, ok := s.pending[id]
	s.mu.RUnlock()
	if !ok {
		op = Operator{ID: id}
	}
	return op, s.Allow(op)
}

// Deny drops a pending request. It reports whether one existed.
func (s *Service) Deny(id int64) (bool, error) {
	s.mu.Lock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if ok && s.pendingRepo != nil {
		return true, s.pendingRepo.Remove(id)
	}
	return ok, nil
}

// List returns the allowed operators ordered by id.
func (s *Service) List() []Operator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.allowed)
}

// Pending returns the waiting requests ordered by id.
func (s *Service) Pending() []Operator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.pending)
}

func sorted(m map[int64]Operator) []Operator {
	out := make([]Operator, 0, len(m))
	for _, op := range m {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
