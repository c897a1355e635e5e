// Package vectorstore wraps the qdrant-go-client for the two collections C6
// (indexing) and C9 (semantic search) share: a case-level collection and an
// issue-level collection, both cosine-distance. Qdrant point IDs must be a
// UUID or an unsigned integer, so external string IDs (case_id, issue_id)
// are deterministically mapped to a UUID via uuid.NewMD5 and the original
// external ID is always carried in the payload for retrieval and filtering.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/unergybot/tke/pkg/models"
)

// idNamespace scopes the deterministic UUID mapping so that a case_id and an
// issue_id with the same string value never collide across collections.
var idNamespace = uuid.MustParse("6f9c1b6a-0a6a-4c2e-9f0e-9a6f9c7e2b11")

// Point is one vector to upsert: externalID is the caller's natural key
// (case_id or issue_id), carried in Payload under payloadIDKey for
// post-query filtering and dedup.
type Point struct {
	ExternalID string
	Vector     []float32
	Payload    map[string]any
}

// ScoredPoint is one query hit: ExternalID is recovered from the payload,
// not from the point's internal UUID.
type ScoredPoint struct {
	ExternalID string
	Score      float32
	Payload    map[string]any
}

// payloadIDKey is the payload field every point carries its external ID
// under, regardless of collection.
const payloadIDKey = "_external_id"

// Store is a thin, synchronous wrapper over a qdrant.Client.
type Store struct {
	client *qdrant.Client
}

// New wraps an already-connected qdrant client.
func New(client *qdrant.Client) *Store {
	return &Store{client: client}
}

// EnsureCollection creates the named collection with the given cosine vector
// dimension if it does not already exist. Safe to call on every startup.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %v", models.ErrDependency, collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %v", models.ErrDependency, collection, err)
	}
	return nil
}

// Upsert writes a single point, waiting for the operation to be durable
// before returning.
func (s *Store) Upsert(ctx context.Context, collection string, point Point) error {
	return s.UpsertBatch(ctx, collection, []Point{point})
}

// UpsertBatch writes points in one round trip. A no-op on an empty slice.
func (s *Store) UpsertBatch(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wait := true
	req := &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
	}
	for _, p := range points {
		ps, err := buildPointStruct(p)
		if err != nil {
			return fmt.Errorf("%w: build point for %s: %v", models.ErrInput, p.ExternalID, err)
		}
		req.Points = append(req.Points, ps)
	}

	if _, err := s.client.Upsert(ctx, req); err != nil {
		return fmt.Errorf("%w: upsert %d points into %s: %v", models.ErrDependency, len(points), collection, err)
	}
	return nil
}

// Search runs a top-K nearest-neighbor query, optionally constrained by an
// equality filter (field -> string/int/int64/bool value, AND-combined; a
// value of any other type is ignored).
// Results below scoreThreshold are excluded server-side.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float32, filter map[string]any) ([]ScoredPoint, error) {
	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		ScoreThreshold: &scoreThreshold,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Query:          qdrant.NewQuery(vector...),
	}
	if len(filter) > 0 {
		req.Filter = buildFilter(filter)
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", models.ErrDependency, collection, err)
	}

	out := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		payload := convertPayload(p.GetPayload())
		externalID, _ := payload[payloadIDKey].(string)
		delete(payload, payloadIDKey)
		out = append(out, ScoredPoint{
			ExternalID: externalID,
			Score:      p.GetScore(),
			Payload:    payload,
		})
	}
	return out, nil
}

// Count returns the number of points currently stored in collection, used
// by the stats operation to report vector counts alongside relational ones.
func (s *Store) Count(ctx context.Context, collection string) (uint64, error) {
	exact := true
	resp, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", models.ErrDependency, collection, err)
	}
	return resp, nil
}

// DeleteByMatch deletes every point whose payload field key equals value,
// used by the delete-first best-effort cleanup when a case is removed.
func (s *Store) DeleteByMatch(ctx context.Context, collection, key, value string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchKeyword(key, value)},
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s=%s from %s: %v", models.ErrDependency, key, value, collection, err)
	}
	return nil
}

func buildPointStruct(p Point) (*qdrant.PointStruct, error) {
	payload := make(map[string]any, len(p.Payload)+1)
	for k, v := range p.Payload {
		payload[k] = v
	}
	payload[payloadIDKey] = p.ExternalID

	payloadValues, err := qdrant.TryValueMap(payload)
	if err != nil {
		return nil, err
	}

	return &qdrant.PointStruct{
		Id:      pointID(p.ExternalID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payloadValues,
	}, nil
}

// pointID deterministically maps an external string ID to the UUID form
// Qdrant requires for point identifiers.
func pointID(externalID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewMD5(idNamespace, []byte(externalID)).String())
}

// buildFilter AND-combines equality conditions over the given field/value
// pairs; this is the only filter shape the indexer and searcher need
// (case_id lookup, part_number match, result filtering).
func buildFilter(fields map[string]any) *qdrant.Filter {
	f := &qdrant.Filter{}
	for key, value := range fields {
		switch v := value.(type) {
		case string:
			f.Must = append(f.Must, qdrant.NewMatchKeyword(key, v))
		case int:
			f.Must = append(f.Must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			f.Must = append(f.Must, qdrant.NewMatchInt(key, v))
		case bool:
			f.Must = append(f.Must, qdrant.NewMatchBool(key, v))
		}
	}
	return f
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch kind := value.Kind.(type) {
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return convertStruct(kind.StructValue)
	case *qdrant.Value_ListValue:
		return convertList(kind.ListValue)
	default:
		return nil
	}
}

func convertStruct(s *qdrant.Struct) map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		out[k] = convertValue(v)
	}
	return out
}

func convertList(l *qdrant.ListValue) []any {
	if l == nil {
		return nil
	}
	out := make([]any, len(l.Values))
	for i, v := range l.Values {
		out[i] = convertValue(v)
	}
	return out
}
