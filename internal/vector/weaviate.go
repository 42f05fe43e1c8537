// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig locates the vector-database sidecar.
type WeaviateConfig struct {
	// URL is the sidecar base URL, e.g. "http://localhost:8002".
	URL        string
	APIKey     string
	Collection string
}

// WeaviateIndex stores records as objects of one Weaviate class with
// caller-supplied vectors.
type WeaviateIndex struct {
	client *weaviate.Client
	class  string

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewWeaviate connects to the sidecar. The class is created on first write.
func NewWeaviate(cfg WeaviateConfig) (*WeaviateIndex, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", cfg.URL)
	}
	wc := weaviate.Config{Host: u.Host, Scheme: u.Scheme}
	if cfg.APIKey != "" {
		wc.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wc)
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}
	return &WeaviateIndex{client: client, class: className(cfg.Collection)}, nil
}

// Ready reports whether the sidecar accepts requests.
func (w *WeaviateIndex) Ready(ctx context.Context) (bool, error) {
	return w.client.Misc().ReadyChecker().Do(ctx)
}

func (w *WeaviateIndex) ensureSchema(ctx context.Context) error {
	w.schemaMu.Lock()
	defer w.schemaMu.Unlock()
	if w.schemaReady {
		return nil
	}
	class := &models.Class{
		Class:       w.class,
		Description: "Research paper vectors",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "record_id", DataType: []string{"text"}},
			{Name: "paper_id", DataType: []string{"text"}},
			{Name: "kind", DataType: []string{"text"}},
			{Name: "label", DataType: []string{"text"}},
		},
	}
	err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("creating weaviate class %s: %w", w.class, err)
	}
	w.schemaReady = true
	return nil
}

// Upsert replaces each record's object.
func (w *WeaviateIndex) Upsert(ctx context.Context, recs ...Record) error {
	if err := w.ensureSchema(ctx); err != nil {
		return err
	}
	for _, r := range recs {
		if len(r.Vector) == 0 {
			continue
		}
		id := objectID(r.ID)
		if err := w.deleteObject(ctx, id); err != nil {
			return err
		}
		_, err := w.client.Data().Creator().
			WithClassName(w.class).
			WithID(id).
			WithProperties(map[string]interface{}{
				"record_id": r.ID,
				"paper_id":  r.PaperID,
				"kind":      r.Kind,
				"label":     r.Label,
			}).
			WithVector(r.Vector).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("storing vector %s: %w", r.ID, err)
		}
	}
	return nil
}

// Delete removes objects. Missing objects are ignored.
func (w *WeaviateIndex) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := w.deleteObject(ctx, objectID(id)); err != nil {
			return err
		}
	}
	return nil
}

func (w *WeaviateIndex) deleteObject(ctx context.Context, id string) error {
	err := w.client.Data().Deleter().WithClassName(w.class).WithID(id).Do(ctx)
	var werr *fault.WeaviateClientError
	if err != nil && !(errors.As(err, &werr) && werr.StatusCode == http.StatusNotFound) {
		return fmt.Errorf("deleting vector object %s: %w", id, err)
	}
	return nil
}

// Query runs a nearVector search. Scores are Weaviate certainties.
func (w *WeaviateIndex) Query(ctx context.Context, vec []float32, k int, kind string) ([]Match, error) {
	if k <= 0 {
		k = 100
	}
	get := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(
			graphql.Field{Name: "record_id"},
			graphql.Field{Name: "paper_id"},
			graphql.Field{Name: "kind"},
			graphql.Field{Name: "label"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
		).
		WithNearVector(w.client.GraphQL().NearVectorArgBuilder().WithVector(vec)).
		WithLimit(k)
	if kind != "" {
		get = get.WithWhere(filters.Where().
			WithPath([]string{"kind"}).
			WithOperator(filters.Equal).
			WithValueText(kind))
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying weaviate: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("querying weaviate: %s", result.Errors[0].Message)
	}
	return parseMatches(result.Data, w.class), nil
}

// Close is a no-op; the client holds no connections of its own.
func (w *WeaviateIndex) Close() error { return nil }

// parseMatches reads Get.<class>[] objects out of a GraphQL response.
func parseMatches(data map[string]models.JSONObject, class string) []Match {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return nil
	}
	matches := make([]Match, 0, len(objects))
	for _, o := range objects {
		obj, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		m := Match{
			ID:      stringField(obj, "record_id"),
			PaperID: stringField(obj, "paper_id"),
			Kind:    stringField(obj, "kind"),
			Label:   stringField(obj, "label"),
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if c, ok := add["certainty"].(float64); ok {
				m.Score = c
			}
		}
		matches = append(matches, m)
	}
	return matches
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

// objectID maps a record id to the deterministic UUID Weaviate requires.
func objectID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("research-assistant:"+recordID)).String()
}

// className turns a collection name like "research_papers" into a valid
// Weaviate class name ("ResearchPapers").
func className(collection string) string {
	var b strings.Builder
	upper := true
	for _, r := range collection {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	name := b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "Papers" + name
	}
	return name
}
