// Package detect walks a syntax tree and reports the version requirements
// of every construct the rule database knows.
package detect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gnolang/minver/internal/backport"
	"github.com/gnolang/minver/internal/exclusion"
	"github.com/gnolang/minver/internal/rules"
)

// Optional detections that are off by default because they can misfire.
const (
	FeatureFStringSelfDoc = "fstring-self-doc"
	FeatureUnionTypes     = "union-types"
)

var ErrUnknownFeature = errors.New("unknown feature")

var knownFeatures = map[string]string{
	FeatureFStringSelfDoc: "detect self-documenting f-strings (f'{x=}')",
	FeatureUnionTypes:     "detect type unions (X | Y)",
}

// Features returns the known feature names, sorted.
func Features() []string {
	out := make([]string, 0, len(knownFeatures))
	for f := range knownFeatures {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// DescribeFeature returns the help text of feature.
func DescribeFeature(feature string) string {
	return knownFeatures[feature]
}

// ValidateFeature reports an error for unknown feature names.
func ValidateFeature(feature string) error {
	if _, ok := knownFeatures[feature]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	return nil
}

// Options are the policy switches of a detection run.
type Options struct {
	// EvalAnnotations analyzes annotations as evaluated code.
	EvalAnnotations bool
	// Lax demotes facts found under conditional constructs to uncertain.
	Lax             bool
	Features        []string
}

// Context bundles everything a detection run consults. It is immutable
// and may be shared by concurrent detections.
type Context struct {
	DB         *rules.Database
	Exclusions *exclusion.Filter
	Backports  *backport.Resolver

	evalAnnotations bool
	lax             bool
	selfDoc         bool
	unionTypes      bool
}

// NewContext validates opts and builds a Context. A nil db means the
// built-in rule table.
func NewContext(db *rules.Database, ex *exclusion.Filter, bp *backport.Resolver, opts Options) (*Context, error) {
	if db == nil {
		db = rules.Default()
	}
	c := &Context{
		DB:              db,
		Exclusions:      ex,
		Backports:       bp,
		evalAnnotations: opts.EvalAnnotations,
		lax:             opts.Lax,
	}
	for _, f := range opts.Features {
		if err := ValidateFeature(f); err != nil {
			return nil, err
		}
		switch f {
		case FeatureFStringSelfDoc:
			c.selfDoc = true
		case FeatureUnionTypes:
			c.unionTypes = true
		}
	}
	return c, nil
}
