// Package qdrant implements core.VectorIndex on a Qdrant collection. Each
// point carries the product id in its "product_id" payload field; point ids
// are UUIDs derived from the product id so re-indexing overwrites.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/ordermesh/core"
	"github.com/qdrant/go-client/qdrant"
)

const payloadProductID = "product_id"

// DefaultPort is the Qdrant gRPC port.
const DefaultPort = 6334

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the server address, e.g. "https://example.qdrant.io:6334".
	URL        string
	Collection string
	APIKey     string
	// Dimensions sizes the collection when EnsureCollection creates it.
	Dimensions int
}

// Index is a Qdrant backed vector index.
type Index struct {
	client     *qdrant.Client
	collection string
	dims       int
}

// New connects to Qdrant.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Index{client: client, collection: cfg.Collection, dims: cfg.Dimensions}, nil
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet.
func (x *Index) EnsureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	if x.dims <= 0 {
		return fmt.Errorf("qdrant collection %s missing and dimensions unset", x.collection)
	}
	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(x.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection: %w", err)
	}
	return nil
}

// Upsert implements vector.Writer.
func (x *Index) Upsert(ctx context.Context, productID string, vec []float32) error {
	wait := true
	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(PointID(productID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{payloadProductID: productID}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search implements core.VectorIndex.
func (x *Index) Search(ctx context.Context, vec []float32, k int) ([]core.Hit, error) {
	limit := uint64(k)
	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	hits := make([]core.Hit, 0, len(points))
	for _, p := range points {
		if h, ok := toHit(p); ok {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error { return x.client.Close() }

// PointID maps a product id onto a stable UUID point id.
func PointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ordermesh:product:"+productID)).String()
}

func toHit(p *qdrant.ScoredPoint) (core.Hit, bool) {
	v, ok := p.GetPayload()[payloadProductID]
	if !ok || v.GetStringValue() == "" {
		return core.Hit{}, false
	}
	return core.Hit{ProductID: v.GetStringValue(), Score: float64(p.GetScore())}, true
}

func parseURL(raw string) (host string, port int, useTLS bool, err error) {
	if raw == "" {
		return "", 0, false, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("parse qdrant url: %w", err)
	}
	port = DefaultPort
	if u.Port() != "" {
		if port, err = strconv.Atoi(u.Port()); err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
