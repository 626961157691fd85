package store

import (
	"encoding/json"
	"errors"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
)

// PacketVersion is stamped into exported packets.
const PacketVersion = "1.0.0"

// Packet is the versioned backup/restore envelope for the persisted state.
type Packet struct {
	Version   string         `json:"version"`
	Timestamp int64          `json:"timestamp"`
	Origin    string         `json:"origin"`
	Payload   *PacketPayload `json:"payload"`
}

// PacketPayload carries the persisted collections as one unit.
type PacketPayload struct {
	Incidents     []domain.Incident     `json:"incidents"`
	User          *domain.User          `json:"user"`
	Notifications []domain.Notification `json:"notifications"`
}

// ErrInvalidPacket is returned when an import envelope fails validation.
// Validation failures never partially overwrite state.
var ErrInvalidPacket = errors.New("invalid data packet")

// ExportPacket snapshots the current state into a packet.
func (s *Store) ExportPacket() Packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	origin := "anonymous"
	if s.user != nil && s.user.Name != "" {
		origin = s.user.Name
	}

	incidents := make([]domain.Incident, len(s.incidents))
	copy(incidents, s.incidents)
	notifications := make([]domain.Notification, len(s.notifications))
	copy(notifications, s.notifications)

	var user *domain.User
	if s.user != nil {
		u := *s.user
		user = &u
	}

	return Packet{
		Version:   PacketVersion,
		Timestamp: domain.NowMillis(),
		Origin:    origin,
		Payload: &PacketPayload{
			Incidents:     incidents,
			User:          user,
			Notifications: notifications,
		},
	}
}

// ImportPacket validates and applies a packet, replacing the persisted state.
// A packet missing its version or payload is rejected before any mutation.
func (s *Store) ImportPacket(data []byte) error {
	var packet Packet
	if err := json.Unmarshal(data, &packet); err != nil {
		return ErrInvalidPacket
	}
	if packet.Version == "" || packet.Payload == nil {
		return ErrInvalidPacket
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.incidents = packet.Payload.Incidents
	s.notifications = packet.Payload.Notifications
	if packet.Payload.User != nil {
		s.user = packet.Payload.User
	}
	s.metrics.IncidentStoreSize.Set(float64(len(s.incidents)))
	s.persistLocked()
	return nil
}
