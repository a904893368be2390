package avrcp

import "log"

// SlotTable holds the fixed set of connection slots. It is owned by
// the dispatcher goroutine; callers outside the worker must go through
// the session manager.
type SlotTable struct {
	slots []*DeviceSlot
	gen   uint64
}

// NewSlotTable allocates a table with the given capacity (1 or 2).
func NewSlotTable(maxConnections int) *SlotTable {
	if maxConnections < SingleConnection {
		maxConnections = SingleConnection
	}
	if maxConnections > DualConnections {
		maxConnections = DualConnections
	}
	t := &SlotTable{slots: make([]*DeviceSlot, maxConnections)}
	for i := range t.slots {
		s := &DeviceSlot{}
		s.Reset()
		t.slots[i] = s
	}
	return t
}

func (t *SlotTable) Len() int { return len(t.slots) }

// At returns the slot at index i, nil when out of range.
func (t *SlotTable) At(i int) *DeviceSlot {
	if i < 0 || i >= len(t.slots) {
		return nil
	}
	return t.slots[i]
}

// IndexOf returns the slot index for addr, InvalidSlot when the device
// is not connected.
func (t *SlotTable) IndexOf(addr string) int {
	for i, s := range t.slots {
		if s.Occupied && s.Addr == addr {
			return i
		}
	}
	return InvalidSlot
}

// Slot returns the slot for addr, nil when not connected.
func (t *SlotTable) Slot(addr string) *DeviceSlot {
	if i := t.IndexOf(addr); i != InvalidSlot {
		return t.slots[i]
	}
	return nil
}

// Connect binds addr to a slot. Reconnecting an already-bound address
// returns its existing slot unchanged.
func (t *SlotTable) Connect(addr, name string, twsPlus bool, features uint32) (*DeviceSlot, error) {
	if s := t.Slot(addr); s != nil {
		log.Printf("AVRCP: connect for already bound device %s", addr)
		s.Name = name
		s.Features = features
		return s, nil
	}
	for _, s := range t.slots {
		if s.Occupied {
			continue
		}
		t.gen++
		s.Reset()
		s.Occupied = true
		s.Addr = addr
		s.Name = name
		s.TwsPlus = twsPlus
		s.Features = features
		s.Generation = t.gen
		s.AbsVolSupported = features&FeatAbsVolume != 0
		return s, nil
	}
	return nil, ErrNoSlot
}

// Disconnect clears the slot bound to addr. The returned slot has
// already been reset; callers that need pre-reset state must read it
// through Slot first.
func (t *SlotTable) Disconnect(addr string) (*DeviceSlot, error) {
	s := t.Slot(addr)
	if s == nil {
		return nil, ErrUnknownDevice
	}
	s.Reset()
	return s, nil
}

// SetActive marks addr's slot active and every other slot inactive,
// unless the other slot holds the TWS+ pair earbud, in which case both
// stay active. An unknown addr clears all active flags.
func (t *SlotTable) SetActive(addr string) *DeviceSlot {
	target := t.Slot(addr)
	if target == nil {
		for _, s := range t.slots {
			s.Active = false
		}
		return nil
	}
	for _, s := range t.slots {
		if s == target {
			s.Active = true
			continue
		}
		if s.Occupied && s.TwsPlus && target.TwsPlus {
			// Streaming handoff between speaker and TWS+ earbuds needs
			// both pair members active.
			s.Active = true
			continue
		}
		s.Active = false
	}
	return target
}

// Active returns the first active slot, nil when none.
func (t *SlotTable) Active() *DeviceSlot {
	for _, s := range t.slots {
		if s.Occupied && s.Active {
			return s
		}
	}
	return nil
}

// AllOccupied reports whether every slot is bound.
func (t *SlotTable) AllOccupied() bool {
	for _, s := range t.slots {
		if !s.Occupied {
			return false
		}
	}
	return true
}

// Occupied returns the bound slots in index order.
func (t *SlotTable) Occupied() []*DeviceSlot {
	var out []*DeviceSlot
	for _, s := range t.slots {
		if s.Occupied {
			out = append(out, s)
		}
	}
	return out
}

// TwsPair reports whether a and b are distinct connected TWS+ earbuds,
// which the session treats as one logical endpoint.
func (t *SlotTable) TwsPair(a, b string) bool {
	if a == b {
		return false
	}
	sa, sb := t.Slot(a), t.Slot(b)
	return sa != nil && sb != nil && sa.TwsPlus && sb.TwsPlus
}
