package store

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"shopdesk-backend/internal/support"
	"shopdesk-backend/internal/types"
)

//go:embed policies.yaml
var defaultPolicies []byte

// PolicyStore serves the fixed set of store policies. Records are immutable after load.
type PolicyStore struct {
	entries map[support.PolicyKey]types.Policy
}

// NewPolicyStore loads the embedded policy documents.
func NewPolicyStore() *PolicyStore {
	ps, err := parsePolicies(defaultPolicies)
	if err != nil {
		panic(errors.Wrap(err, "embedded policies"))
	}
	return ps
}

// LoadPolicyStore reads policies from a YAML file. Keys the file omits keep
// their embedded text; keys outside the closed set are rejected.
func LoadPolicyStore(path string) (*PolicyStore, error) {
	base := NewPolicyStore()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read policies %s", path)
	}
	override, err := parsePolicies(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parse policies %s", path)
	}
	for k, p := range override.entries {
		base.entries[k] = p
	}
	return base, nil
}

func parsePolicies(b []byte) (*PolicyStore, error) {
	var docs []types.Policy
	if err := yaml.Unmarshal(b, &docs); err != nil {
		return nil, err
	}
	ps := &PolicyStore{entries: make(map[support.PolicyKey]types.Policy, len(docs))}
	for _, d := range docs {
		key := support.PolicyKey(strings.ToLower(strings.TrimSpace(d.Key)))
		if !knownPolicy(key) {
			return nil, errors.Errorf("unknown policy key %q", d.Key)
		}
		d.Key = string(key)
		d.Title = strings.TrimSpace(d.Title)
		d.Content = strings.TrimSpace(d.Content)
		ps.entries[key] = d
	}
	return ps, nil
}

func knownPolicy(key support.PolicyKey) bool {
	for _, k := range support.PolicyKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (s *PolicyStore) Get(key support.PolicyKey) (types.Policy, bool) {
	p, ok := s.entries[key]
	return p, ok
}

// All returns the documents in key order.
func (s *PolicyStore) All() []types.Policy {
	out := make([]types.Policy, 0, len(s.entries))
	for _, k := range support.PolicyKeys {
		if p, ok := s.entries[k]; ok {
			out = append(out, p)
		}
	}
	return out
}
