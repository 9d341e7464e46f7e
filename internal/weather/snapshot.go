package weather

import (
	"image"
	"sync/atomic"
	"time"
)

type IconState int

const (
	// IconPending means a resolution is outstanding or failed transiently,
	// the image is the one carried over from the previous snapshot.
	IconPending IconState = iota
	IconPresent
	IconAbsent
)

func (s IconState) String() string {
	switch s {
	case IconPending:
		return "pending"
	case IconPresent:
		return "present"
	case IconAbsent:
		return "absent"
	}
	return "unknown"
}

// Snapshot is the latest decoded weather record. It is never mutated once built.
type Snapshot struct {
	fields     Fields
	icon       image.Image
	iconState  IconState
	seq        uint64
	receivedAt time.Time
}

func NewSnapshot(fields Fields, icon image.Image, iconState IconState, seq uint64, receivedAt time.Time) *Snapshot {
	if iconState == IconAbsent {
		icon = nil
	}
	return &Snapshot{
		fields:     fields,
		icon:       icon,
		iconState:  iconState,
		seq:        seq,
		receivedAt: receivedAt,
	}
}

// WithIcon returns a copy of the snapshot carrying another icon
func (s *Snapshot) WithIcon(icon image.Image, iconState IconState) *Snapshot {
	return NewSnapshot(s.fields, icon, iconState, s.seq, s.receivedAt)
}

func (s *Snapshot) Fields() Fields {
	return s.fields
}

func (s *Snapshot) High() string {
	return s.fields.High
}

func (s *Snapshot) Low() string {
	return s.fields.Low
}

func (s *Snapshot) Time() string {
	return s.fields.Time
}

func (s *Snapshot) Icon() image.Image {
	return s.icon
}

func (s *Snapshot) IconState() IconState {
	return s.iconState
}

// Seq is the sequence number of the notification the snapshot was decoded from
func (s *Snapshot) Seq() uint64 {
	return s.seq
}

func (s *Snapshot) ReceivedAt() time.Time {
	return s.receivedAt
}

// Cell is a single-slot latest value holder.
// One goroutine stores, any number of goroutines load.
type Cell struct {
	current atomic.Pointer[Snapshot]
}

// Load returns nil as long as nothing was ever stored
func (c *Cell) Load() *Snapshot {
	return c.current.Load()
}

func (c *Cell) Store(snapshot *Snapshot) {
	c.current.Store(snapshot)
}
