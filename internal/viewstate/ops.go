package viewstate

import "github.com/and161185/promptvault/internal/model"

// OpKind names a mutating operation.
type OpKind string

// Mutating operations tracked for single-flight.
const (
	OpPurchase OpKind = "purchase"
	OpLike     OpKind = "like"
	OpUnlike   OpKind = "unlike"
	OpRate     OpKind = "rate"
	OpCreate   OpKind = "create"
	OpUpdate   OpKind = "update"
	OpDelete   OpKind = "delete"
	OpProfile  OpKind = "profile"
)

// OpKey identifies a single-flight slot. Item is zero for operations not tied to an item.
type OpKey struct {
	Item model.ItemID
	Op   OpKind
}

// Op is a claimed single-flight slot.
type Op struct {
	Key   OpKey
	token uint64
	scope Scope
}

// Scope returns the identity epoch the operation was started in.
func (o Op) Scope() Scope { return o.scope }

// BeginOp claims the slot for key. It reports false while the slot is taken.
func (s *State) BeginOp(key OpKey) (Op, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[key]; busy {
		return Op{}, false
	}
	s.opSeq++
	s.pending[key] = s.opSeq
	return Op{Key: key, token: s.opSeq, scope: Scope{Identity: s.identity, epoch: s.epoch}}, true
}

// EndOp releases the slot if op still owns it.
func (s *State) EndOp(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.pending[op.Key]; ok && tok == op.token {
		delete(s.pending, op.Key)
	}
}

// Pending reports whether key is in flight.
func (s *State) Pending(key OpKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Fail records err as the last error unless the identity changed since op began.
func (s *State) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.scope.epoch == s.epoch {
		s.lastError = err
	}
}

// Settle clears the last error after a confirmed mutation.
func (s *State) Settle(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.scope.epoch == s.epoch {
		s.lastError = nil
	}
}
