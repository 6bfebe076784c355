package arbitration

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
)

var (
	errRegistryNotInitialised = errors.New("arbitration: registry not initialised")
	// ErrUnknownArbitrator is returned when the address was never registered.
	ErrUnknownArbitrator = errors.New("arbitration: arbitrator not registered")
	// ErrZeroAddress is returned when registering the zero address.
	ErrZeroAddress = errors.New("arbitration: zero address")
)

var indexKey = []byte("arbitration/index")

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
}

// Arbitrator is a registered participant eligible for dispute assignment
// while Active.
type Arbitrator struct {
	Address      [20]byte
	Active       bool
	RegisteredAt uint64
	Label        string
}

// Registry persists the arbitrator pool the escrow engine selects from.
type Registry struct {
	state registryState
}

// NewRegistry constructs a registry backed by the provided state accessor.
func NewRegistry(state registryState) *Registry {
	return &Registry{state: state}
}

func arbitratorKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("arbitration/member/%s", hex.EncodeToString(addr[:])))
}

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return errRegistryNotInitialised
	}
	return nil
}

func (r *Registry) index() ([][]byte, error) {
	var list [][]byte
	if _, err := r.state.KVGet(indexKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Register adds addr to the pool, or reactivates it when already known.
func (r *Registry) Register(addr [20]byte, label string, now uint64) error {
	if err := r.ready(); err != nil {
		return err
	}
	if addr == ([20]byte{}) {
		return ErrZeroAddress
	}
	existing, ok, err := r.Get(addr)
	if err != nil {
		return err
	}
	if ok {
		existing.Active = true
		if label != "" {
			existing.Label = label
		}
		return r.state.KVPut(arbitratorKey(addr), existing)
	}
	record := &Arbitrator{Address: addr, Active: true, RegisteredAt: now, Label: label}
	if err := r.state.KVPut(arbitratorKey(addr), record); err != nil {
		return err
	}
	return r.state.KVAppend(indexKey, addr[:])
}

// SetActive toggles eligibility for a registered arbitrator.
func (r *Registry) SetActive(addr [20]byte, active bool) error {
	if err := r.ready(); err != nil {
		return err
	}
	record, ok, err := r.Get(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownArbitrator
	}
	record.Active = active
	return r.state.KVPut(arbitratorKey(addr), record)
}

// Get fetches the record for addr.
func (r *Registry) Get(addr [20]byte) (*Arbitrator, bool, error) {
	if err := r.ready(); err != nil {
		return nil, false, err
	}
	var record Arbitrator
	ok, err := r.state.KVGet(arbitratorKey(addr), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &record, true, nil
}

// IsActive reports whether addr is currently eligible.
func (r *Registry) IsActive(addr [20]byte) (bool, error) {
	record, ok, err := r.Get(addr)
	if err != nil || !ok {
		return false, err
	}
	return record.Active, nil
}

// Active lists every active arbitrator in ascending address order.
func (r *Registry) Active() ([][20]byte, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	list, err := r.index()
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(list))
	for _, raw := range list {
		var addr [20]byte
		copy(addr[:], raw)
		active, err := r.IsActive(addr)
		if err != nil {
			return nil, err
		}
		if active {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

// Eligible returns the active pool minus the supplied addresses. The escrow
// engine excludes the buyer and seller so neither can hold two votes.
func (r *Registry) Eligible(exclude ...[20]byte) ([][20]byte, error) {
	active, err := r.Active()
	if err != nil {
		return nil, err
	}
	out := active[:0]
	for _, addr := range active {
		skip := false
		for _, ex := range exclude {
			if addr == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, addr)
		}
	}
	return out, nil
}
