package audit

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geo-audit/internal/model"
)

// queryFile is the mapping form of a query file. A bare list of queries is
// accepted too.
type queryFile struct {
	Queries []model.Query `yaml:"queries"`
}

// LoadQueries reads and normalizes the queries in a YAML file.
func LoadQueries(path string) ([]model.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "audit: read queries %s", path)
	}
	queries, err := ParseQueries(data)
	if err != nil {
		return nil, eris.Wrapf(err, "audit: parse queries %s", path)
	}
	return queries, nil
}

// ParseQueries decodes YAML queries. Missing IDs get a UUID, a missing
// type means category and a missing weight means 1. Empty text, an
// unknown type, a negative weight or a duplicate ID is an error.
func ParseQueries(data []byte) ([]model.Query, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "audit: decode yaml")
	}
	if len(doc.Content) == 0 {
		return nil, eris.New("audit: no queries")
	}

	var queries []model.Query
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&queries); err != nil {
			return nil, eris.Wrap(err, "audit: decode query list")
		}
	} else {
		var f queryFile
		if err := root.Decode(&f); err != nil {
			return nil, eris.Wrap(err, "audit: decode query file")
		}
		queries = f.Queries
	}
	if len(queries) == 0 {
		return nil, eris.New("audit: no queries")
	}

	seen := make(map[string]int, len(queries))
	for i := range queries {
		q := &queries[i]
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, eris.Errorf("audit: query %d has no text", i+1)
		}
		if q.Type == "" {
			q.Type = model.QueryCategory
		}
		if !q.Type.Valid() {
			return nil, eris.Errorf("audit: query %d has unknown type %q", i+1, q.Type)
		}
		switch {
		case q.Weight < 0:
			return nil, eris.Errorf("audit: query %d has negative weight", i+1)
		case q.Weight == 0:
			q.Weight = 1
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if prev, ok := seen[q.ID]; ok {
			return nil, eris.Errorf("audit: queries %d and %d share id %q", prev, i+1, q.ID)
		}
		seen[q.ID] = i + 1
	}
	return queries, nil
}
