package match

import (
	"context"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/model"
)

// RankedLead is one lead ordered by similarity to the ICP embedding. Leads
// returned through the degraded path carry no similarity.
type RankedLead struct {
	LeadID        string
	Similarity    float64
	HasSimilarity bool
}

// Ranker orders a batch's enriched leads by similarity to an ICP embedding.
type Ranker interface {
	Rank(ctx context.Context, icpEmbedding []float32, batchID string, leads []model.Lead) ([]RankedLead, error)
}

// VectorRanker implements Ranker on a qdrant collection. Lead embeddings are
// upserted before each query, so the collection never needs to be kept in
// sync outside the qualify path.
type VectorRanker struct {
	client     *qdrant.Client
	collection string
}

// NewVectorRanker creates a ranker against the given collection.
func NewVectorRanker(client *qdrant.Client, collection string) *VectorRanker {
	if collection == "" {
		collection = "leads"
	}
	return &VectorRanker{client: client, collection: collection}
}

// EnsureCollection creates the cosine-distance collection if it does not
// already exist.
func (r *VectorRanker) EnsureCollection(ctx context.Context, dims int) error {
	err := r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return eris.Wrapf(err, "ranker: create collection %s", r.collection)
	}
	return nil
}

// Rank upserts the leads' embeddings and runs a batch-scoped nearest-neighbor
// query. Any qdrant failure degrades to returning the leads unranked rather
// than failing qualification.
func (r *VectorRanker) Rank(ctx context.Context, icpEmbedding []float32, batchID string, leads []model.Lead) ([]RankedLead, error) {
	if len(leads) == 0 {
		return nil, nil
	}

	if err := r.index(ctx, batchID, leads); err != nil {
		zap.L().Warn("vector index failed, degrading to unranked leads",
			zap.String("batch_id", batchID), zap.Error(err))
		return unranked(leads), nil
	}

	limit := uint64(len(leads))
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(icpEmbedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("batch_id", batchID)},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		zap.L().Warn("vector query failed, degrading to unranked leads",
			zap.String("batch_id", batchID), zap.Error(err))
		return unranked(leads), nil
	}

	known := make(map[string]bool, len(leads))
	for _, l := range leads {
		known[l.ID] = true
	}

	ranked := make([]RankedLead, 0, len(points))
	seen := make(map[string]bool, len(points))
	for _, p := range points {
		leadID := p.GetPayload()["lead_id"].GetStringValue()
		if leadID == "" || !known[leadID] || seen[leadID] {
			continue
		}
		seen[leadID] = true
		ranked = append(ranked, RankedLead{
			LeadID:        leadID,
			Similarity:    float64(p.GetScore()),
			HasSimilarity: true,
		})
	}

	// Leads whose embeddings never made it into the collection still have to
	// be scored; append them unranked.
	for _, l := range leads {
		if !seen[l.ID] {
			ranked = append(ranked, RankedLead{LeadID: l.ID})
		}
	}
	return ranked, nil
}

func (r *VectorRanker) index(ctx context.Context, batchID string, leads []model.Lead) error {
	var points []*qdrant.PointStruct
	for _, lead := range leads {
		if len(lead.Embedding) == 0 {
			continue
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(lead.ID),
			Vectors: qdrant.NewVectors(lead.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"lead_id":  lead.ID,
				"batch_id": batchID,
			}),
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
		Wait:           &wait,
	})
	return eris.Wrap(err, "ranker: upsert points")
}

func unranked(leads []model.Lead) []RankedLead {
	out := make([]RankedLead, len(leads))
	for i, l := range leads {
		out[i] = RankedLead{LeadID: l.ID}
	}
	return out
}
