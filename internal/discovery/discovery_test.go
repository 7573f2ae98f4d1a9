package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustdds-go/dds/internal/guid"
	"github.com/dustdds-go/dds/internal/qos"
)

func TestParticipantDataRoundtrips(t *testing.T) {
	loc := guid.NewUDPv4Locator(net.ParseIP("192.168.1.5"), 7410)
	p := ParticipantData{
		GuidPrefix:                guid.Prefix{1, 2, 3},
		ProtocolVersion:           [2]byte{2, 3},
		VendorId:                  [2]byte{0x01, 0x0F},
		DefaultUnicastLocators:    []guid.Locator{loc},
		AvailableBuiltinEndpoints: ThisParticipantBuiltinEndpoints,
		LeaseDuration:             20 * time.Second,
	}
	buf := EncodeParticipantData(p, true)
	got, err := DecodeParticipantData(buf, true)
	require.NoError(t, err)
	assert.Equal(t, p.GuidPrefix, got.GuidPrefix)
	assert.Equal(t, p.AvailableBuiltinEndpoints, got.AvailableBuiltinEndpoints)
	assert.Equal(t, p.LeaseDuration, got.LeaseDuration)
	require.Len(t, got.DefaultUnicastLocators, 1)
	assert.Equal(t, loc.Port, got.DefaultUnicastLocators[0].Port)
}

func TestEndpointDataRoundtrips(t *testing.T) {
	e := EndpointData{
		EndpointGuid: guid.Guid{Prefix: guid.Prefix{9}, Entity: guid.EntityId{0, 0, 1, 0x02}},
		TopicName:    "Square",
		TypeName:     "ShapeType",
		Reliability:  qos.Reliable,
		Durability:   qos.TransientLocal,
		Partition:    []string{"A", "B"},
	}
	buf := EncodeEndpointData(e, true)
	got, err := DecodeEndpointData(buf, true)
	require.NoError(t, err)
	assert.Equal(t, e.TopicName, got.TopicName)
	assert.Equal(t, e.TypeName, got.TypeName)
	assert.Equal(t, e.EndpointGuid, got.EndpointGuid)
	assert.Len(t, got.Partition, 2)
}

func TestTableExpireLeasesCascadesEndpoints(t *testing.T) {
	tbl := NewTable()
	now := time.Unix(1000, 0)
	prefix := guid.Prefix{7}
	tbl.OnSpdpSample(ParticipantData{GuidPrefix: prefix, LeaseDuration: time.Second}, now)
	tbl.OnSedpWriterSample(EndpointData{EndpointGuid: guid.Guid{Prefix: prefix, Entity: guid.EntityId{0, 0, 1, 0x02}}, TopicName: "T"})

	assert.Empty(t, tbl.ExpireLeases(now.Add(500*time.Millisecond)))

	expired := tbl.ExpireLeases(now.Add(2 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, prefix, expired[0])
	assert.Empty(t, tbl.Writers)
}

func TestPortFormula(t *testing.T) {
	assert.EqualValues(t, 7400, MetatrafficMulticastPort(0))
	assert.EqualValues(t, 7400+11+10, UserUnicastPort(0, 1))
}
