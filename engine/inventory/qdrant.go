package inventory

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// QdrantIndex implements VectorIndex over a Qdrant collection reached
// via gRPC. Points carry the listing id in their payload so hits can be
// hydrated from Postgres.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrantIndex connects to Qdrant at the given gRPC address and ensures
// the collection exists with the listing embedding dimensionality.
func NewQdrantIndex(ctx context.Context, addr, collection string) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("inventory: dial qdrant %s: %w", addr, err)
	}
	q := &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}
	if err := q.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("inventory: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(domain.EmbeddingDim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("inventory: create collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert writes one listing point. The deterministic point id makes the
// call idempotent per listing.
func (q *QdrantIndex) Upsert(ctx context.Context, pointID string, embedding []float32, listingID int64) error {
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"listing_id": {Kind: &pb.Value_IntegerValue{IntegerValue: listingID}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("inventory: upsert point %s: %w", pointID, err)
	}
	return nil
}

// Search performs k-NN similarity search and returns listing ids with
// scores, best match first.
func (q *QdrantIndex) Search(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		id, err := listingIDFromPayload(r.GetPayload())
		if err != nil {
			return nil, fmt.Errorf("inventory: point %s: %w", r.GetId().GetUuid(), err)
		}
		hits = append(hits, Hit{ListingID: id, Score: r.GetScore()})
	}
	return hits, nil
}

func listingIDFromPayload(payload map[string]*pb.Value) (int64, error) {
	v, ok := payload["listing_id"]
	if !ok {
		return 0, fmt.Errorf("payload missing listing_id")
	}
	if iv, ok := v.GetKind().(*pb.Value_IntegerValue); ok {
		return iv.IntegerValue, nil
	}
	return 0, fmt.Errorf("payload listing_id has unexpected type")
}
