package discovery

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/idea-scout/internal/model"
)

// Source produces candidates for a run. On partial failure Generate returns
// the usable candidates together with a joined error describing the rest.
type Source interface {
	Generate(ctx context.Context, n int) ([]model.Candidate, error)
}

// Rand is the sampling source. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalog struct {
	Ideas []model.Candidate `yaml:"ideas"`
}

// LoadCatalog parses a YAML idea catalog.
func LoadCatalog(data []byte) ([]model.Candidate, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "discovery: parse catalog")
	}
	if len(c.Ideas) == 0 {
		return nil, eris.New("discovery: catalog has no ideas")
	}
	return c.Ideas, nil
}

// CatalogSource samples idea templates from a catalog without replacement.
type CatalogSource struct {
	ideas []model.Candidate

	mu  sync.Mutex
	rng Rand
}

// NewCatalogSource creates a source over ideas. A nil rng returns the
// catalog in order.
func NewCatalogSource(ideas []model.Candidate, rng Rand) *CatalogSource {
	return &CatalogSource{ideas: ideas, rng: rng}
}

// DefaultCatalogSource creates a source over the embedded catalog.
func DefaultCatalogSource(rng Rand) (*CatalogSource, error) {
	ideas, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		return nil, err
	}
	return NewCatalogSource(ideas, rng), nil
}

// Generate returns up to n templates. Templates that fail validation are
// skipped and reported in the returned error.
func (s *CatalogSource) Generate(ctx context.Context, n int) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	order := s.order()

	var out []model.Candidate
	var errs []error
	for _, i := range order {
		if len(out) >= n {
			break
		}
		c := s.ideas[i]
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, c)
	}
	return out, errors.Join(errs...)
}

// order is a Fisher-Yates permutation of the catalog indices.
func (s *CatalogSource) order() []int {
	idx := make([]int, len(s.ideas))
	for i := range idx {
		idx[i] = i
	}
	if s.rng == nil {
		return idx
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(idx) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// FileSource reads candidates from a YAML or JSON file, either a bare list
// or a catalog document with an "ideas" key.
type FileSource struct {
	Path string
}

// Generate returns the first n valid candidates in the file. n <= 0 returns
// all of them.
func (s FileSource) Generate(ctx context.Context, n int) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read ideas %s", s.Path)
	}
	ideas, err := parseIdeas(s.Path, data)
	if err != nil {
		return nil, err
	}

	var out []model.Candidate
	var errs []error
	for _, c := range ideas {
		if n > 0 && len(out) >= n {
			break
		}
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, c)
	}
	return out, errors.Join(errs...)
}

func parseIdeas(path string, data []byte) ([]model.Candidate, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var list []model.Candidate
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		var doc struct {
			Ideas []model.Candidate `json:"ideas"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "discovery: parse ideas %s", path)
		}
		return doc.Ideas, nil
	}

	var list []model.Candidate
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc catalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "discovery: parse ideas %s", path)
	}
	return doc.Ideas, nil
}
