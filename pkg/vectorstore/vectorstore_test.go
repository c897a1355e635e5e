package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointIDDeterministicAndDistinctPerExternalID(t *testing.T) {
	a1 := pointID("TS-PN-123-INT-9")
	a2 := pointID("TS-PN-123-INT-9")
	b := pointID("TS-PN-999-INT-1")

	require.Equal(t, a1.GetUuid(), a2.GetUuid())
	assert.NotEqual(t, a1.GetUuid(), b.GetUuid())
}

func TestBuildPointStructCarriesExternalIDInPayload(t *testing.T) {
	p := Point{
		ExternalID: "case-1",
		Vector:     []float32{0.1, 0.2, 0.3},
		Payload:    map[string]any{"part_number": "PN-1"},
	}

	ps, err := buildPointStruct(p)
	require.NoError(t, err)
	assert.Equal(t, "case-1", ps.Payload[payloadIDKey].GetStringValue())
	assert.Equal(t, "PN-1", ps.Payload["part_number"].GetStringValue())
	assert.Len(t, ps.Vectors.GetVector().GetData(), 3)
}

func TestBuildFilterCombinesFieldsWithMust(t *testing.T) {
	f := buildFilter(map[string]any{"part_number": "PN-1", "trial_version": 2})
	assert.Len(t, f.Must, 2)
}

func TestConvertValueHandlesAllKinds(t *testing.T) {
	assert.Equal(t, "x", convertValue(&qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: "x"}}))
	assert.InDelta(t, 1.5, convertValue(&qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: 1.5}}), 0.0001)
	assert.Equal(t, int64(3), convertValue(&qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: 3}}))
	assert.Equal(t, true, convertValue(&qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: true}}))
	assert.Nil(t, convertValue(nil))
}

func TestConvertPayloadRecoversExternalID(t *testing.T) {
	ps, err := buildPointStruct(Point{ExternalID: "issue-7", Vector: []float32{1}})
	require.NoError(t, err)

	out := convertPayload(ps.Payload)
	assert.Equal(t, "issue-7", out[payloadIDKey])
}
