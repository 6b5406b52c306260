package classify

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/educatorstribe/tribenews/internal/types"
)

// PolicyVersion is the policy file layout this build understands.
const PolicyVersion = 1

//go:embed policy.yml
var defaultPolicy []byte

// Policy holds the keyword tables and URL rules used to judge candidates.
type Policy struct {
	Version  int    `yaml:"version"  json:"version"`
	Name     string `yaml:"name"     json:"name"`
	Revision string `yaml:"revision" json:"revision"`

	AfricanContext    []string `yaml:"african_context"     json:"african_context"`
	Education         []string `yaml:"education"           json:"education"`
	Exclude           []string `yaml:"exclude"             json:"exclude"`
	CarveOuts         []string `yaml:"carve_outs"          json:"carve_outs"`
	NonAfricanRegions []string `yaml:"non_african_regions" json:"non_african_regions"`

	NonArticlePaths  []string `yaml:"non_article_paths" json:"non_article_paths"`
	PaginationParams []string `yaml:"pagination_params" json:"pagination_params"`
	ListingPaths     []string `yaml:"listing_paths"     json:"listing_paths"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file. An empty path yields the built-in policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes and validates a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if p.Version != PolicyVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", types.ErrPolicyVersion, p.Version, PolicyVersion)
	}
	if len(p.AfricanContext) == 0 || len(p.Education) == 0 {
		return nil, fmt.Errorf("policy must list african_context and education keywords")
	}
	return &p, nil
}

// Marshal renders the policy back to YAML.
func (p *Policy) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
