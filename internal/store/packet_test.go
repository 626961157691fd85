package store_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/store"
)

func TestPacket_ExportImportRoundTrip(t *testing.T) {
	src := newTestStore(t)
	src.SetUser(domain.User{ID: "u1", Name: "Vega"})
	src.Merge([]domain.Incident{
		makeIncident("a", domain.TriageRed, 90),
		makeIncident("b", domain.TriageGreen, 10),
	})

	packet := src.ExportPacket()
	assert.Equal(t, store.PacketVersion, packet.Version)
	assert.Equal(t, "Vega", packet.Origin)
	require.NotNil(t, packet.Payload)

	data, err := json.Marshal(packet)
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, dst.ImportPacket(data))

	if diff := cmp.Diff(src.Incidents(), dst.Incidents()); diff != "" {
		t.Fatalf("imported incidents mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, dst.User())
	assert.Equal(t, "u1", dst.User().ID)
}

func TestPacket_ImportRejectsMissingPayload(t *testing.T) {
	s := newTestStore(t)
	s.Merge([]domain.Incident{makeIncident("keep", domain.TriageYellow, 50)})

	err := s.ImportPacket([]byte(`{"version":"1.0.0","timestamp":1,"origin":"x"}`))
	assert.ErrorIs(t, err, store.ErrInvalidPacket)

	// Existing state untouched.
	require.Len(t, s.Incidents(), 1)
	assert.Equal(t, "keep", s.Incidents()[0].ID)
}

func TestPacket_ImportRejectsMissingVersion(t *testing.T) {
	s := newTestStore(t)
	err := s.ImportPacket([]byte(`{"payload":{"incidents":[],"user":null,"notifications":[]}}`))
	assert.ErrorIs(t, err, store.ErrInvalidPacket)
}

func TestPacket_ImportRejectsGarbage(t *testing.T) {
	s := newTestStore(t)
	err := s.ImportPacket([]byte("corrupted{{"))
	assert.ErrorIs(t, err, store.ErrInvalidPacket)
}

func TestPacket_ExportAnonymousOrigin(t *testing.T) {
	s := newTestStore(t)
	packet := s.ExportPacket()
	assert.Equal(t, "anonymous", packet.Origin)
}
