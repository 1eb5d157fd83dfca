package config

import (
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/core/merkle"
	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/util"
)

// TreeConfiguration contains settings shared by all trees of the DB.
type TreeConfiguration struct {
	// Hasher is the name of the node compression function.
	Hasher string `yaml:"Hasher"`
	// Workers is the size of the hashing worker pool, 0 means one worker per
	// CPU and 1 disables parallel hashing.
	Workers int `yaml:"Workers"`
	// Retention is the node retention policy name.
	Retention string `yaml:"Retention"`
	// InitialLeaf is the hex-encoded value of empty leaves, all-zero by
	// default.
	InitialLeaf string `yaml:"InitialLeaf"`
	// Trees maps known tree names to their depths.
	Trees map[string]uint32 `yaml:"Trees"`
}

// Validate checks TreeConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (t *TreeConfiguration) Validate() error {
	if _, err := hash.NewCompressor(t.Hasher); err != nil {
		return err
	}
	if t.Workers < 0 {
		return fmt.Errorf("negative Workers: %d", t.Workers)
	}
	if !merkle.RetentionPolicy(t.Retention).IsValid() {
		return fmt.Errorf("unknown Retention: %q", t.Retention)
	}
	if _, err := t.GetInitialLeaf(); err != nil {
		return err
	}
	for name, depth := range t.Trees {
		if len(name) == 0 {
			return fmt.Errorf("empty tree name")
		}
		if depth < 1 || depth > merkle.MaxDepth {
			return fmt.Errorf("tree %s: %w: %d", name, merkle.ErrBadDepth, depth)
		}
	}
	return nil
}

// GetInitialLeaf returns decoded InitialLeaf value.
func (t *TreeConfiguration) GetInitialLeaf() (util.Uint256, error) {
	if len(t.InitialLeaf) == 0 {
		return merkle.ZeroElement, nil
	}
	leaf, err := util.Uint256DecodeStringBE(t.InitialLeaf)
	if err != nil {
		return util.Uint256{}, fmt.Errorf("invalid InitialLeaf: %w", err)
	}
	return leaf, nil
}

// NewHasher creates the Hasher specified by the configuration.
func (t *TreeConfiguration) NewHasher() (hash.Hasher, error) {
	return hash.NewHasher(t.Hasher, t.Workers)
}

// GetDepth returns the configured depth of the named tree.
func (t *TreeConfiguration) GetDepth(name string) (int, bool) {
	depth, ok := t.Trees[name]
	return int(depth), ok
}
