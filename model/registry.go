package model

import (
	"fmt"
	"slices"
)

type factory func(spec Spec, seed uint64, deps Deps) (Classifier, error)

var factories = map[string]factory{
	ArchHashedBOW: newHashedBOW,
	ArchHashedMLP: newHashedMLP,
	ArchEmbedding: newEmbeddingLinear,
}

// New builds a freshly initialized classifier for spec. Classifiers built
// with the same spec and seed start with identical parameters; different
// seeds give independent initializations.
func New(spec Spec, seed uint64, deps Deps) (Classifier, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	c, err := factories[spec.Architecture](spec, seed, deps)
	if err != nil {
		return nil, fmt.Errorf("building %s classifier: %w", spec.Architecture, err)
	}
	return c, nil
}

// Architectures lists the registered architecture tags in sorted order.
func Architectures() []string {
	tags := make([]string, 0, len(factories))
	for tag := range factories {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
