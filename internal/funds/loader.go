// Package funds loads the static fund list.
package funds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/fundlens/internal/models"
)

// ErrInvalidFundConfig is returned for malformed or inconsistent fund lists.
var ErrInvalidFundConfig = errors.New("invalid fund configuration")

// fundFile is the on-disk layout. JSON and YAML also accept a bare list.
type fundFile struct {
	Funds []models.FundSpec `json:"funds" yaml:"funds" toml:"funds"`
}

// Registry is the immutable set of funds for one process.
type Registry struct {
	funds []models.FundSpec
	index map[string]int
}

// LoadFile reads a fund list, picking the decoder from the file extension.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fund list %s: %w", path, err)
	}

	var specs []models.FundSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		specs, err = decodeJSON(data)
	case ".yaml", ".yml":
		specs, err = decodeYAML(data)
	case ".toml":
		var f fundFile
		err = toml.Unmarshal(data, &f)
		specs = f.Funds
	default:
		return nil, fmt.Errorf("%w: unsupported fund list extension %q", ErrInvalidFundConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFundConfig, path, err)
	}

	return NewRegistry(specs)
}

func decodeJSON(data []byte) ([]models.FundSpec, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var specs []models.FundSpec
		err := json.Unmarshal(data, &specs)
		return specs, err
	}
	var f fundFile
	err := json.Unmarshal(data, &f)
	return f.Funds, err
}

func decodeYAML(data []byte) ([]models.FundSpec, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var specs []models.FundSpec
		err := node.Content[0].Decode(&specs)
		return specs, err
	}
	var f fundFile
	err := node.Decode(&f)
	return f.Funds, err
}

// NewRegistry validates specs and builds a lookup index.
func NewRegistry(specs []models.FundSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: fund list is empty", ErrInvalidFundConfig)
	}

	validate := validator.New()
	r := &Registry{index: make(map[string]int, len(specs))}
	for i := range specs {
		spec := specs[i]
		spec.Code = strings.TrimSpace(spec.Code)
		if err := validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("%w: fund #%d (%s): %v", ErrInvalidFundConfig, i+1, spec.Code, err)
		}
		if _, dup := r.index[spec.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate fund code %s", ErrInvalidFundConfig, spec.Code)
		}
		r.index[spec.Code] = len(r.funds)
		r.funds = append(r.funds, spec)
	}
	return r, nil
}

// All returns every fund in configuration order.
func (r *Registry) All() []models.FundSpec {
	out := make([]models.FundSpec, len(r.funds))
	copy(out, r.funds)
	return out
}

// Get returns the fund with the given code.
func (r *Registry) Get(code string) (models.FundSpec, bool) {
	i, ok := r.index[strings.TrimSpace(code)]
	if !ok {
		return models.FundSpec{}, false
	}
	return r.funds[i], true
}

// Codes returns all fund codes in configuration order.
func (r *Registry) Codes() []string {
	codes := make([]string, len(r.funds))
	for i, f := range r.funds {
		codes[i] = f.Code
	}
	return codes
}
