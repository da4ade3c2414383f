package model

import "errors"

var (
	// ErrUnknownArchitecture is returned when no variant is registered for a tag.
	ErrUnknownArchitecture = errors.New("unknown classifier architecture")

	// ErrInvalidSpec is returned when a Spec cannot describe a classifier.
	ErrInvalidSpec = errors.New("invalid classifier spec")

	// ErrParameterShape is returned when a parameter vector has the wrong length.
	ErrParameterShape = errors.New("parameter vector has wrong length")

	// ErrEmbedderRequired is returned when the embedding variant is built without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingShape is returned when the embedder returns vectors of the wrong size.
	ErrEmbeddingShape = errors.New("embedding has wrong dimensions")
)
