// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package artifact saves and restores trained classifiers.
//
// An artifact is a single MUS-encoded blob:
//
//	magic "RLVC" | version | architecture | spec | parameter count | parameters
//
// Parameters are stored as raw IEEE-754 float64 values, so a restored
// classifier scores inputs bit-identically to the one that was saved.
package artifact

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-crypt/x/blake2b"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/model"
)

// Version is the current artifact format version.
const Version = 1

var magic = []byte("RLVC")

// Encode serializes c into an artifact blob.
func Encode(c model.Classifier) []byte {
	spec := c.Spec()
	params := c.Parameters()

	size := len(magic) +
		varint.Int.Size(Version) +
		ord.String.Size(c.Architecture()) +
		varint.Int.Size(spec.Dimensions) +
		varint.Int.Size(spec.HiddenSize) +
		varint.Int.Size(spec.MaxSequenceLength) +
		ord.String.Size(spec.EmbeddingModel) +
		varint.Int.Size(len(params))
	for _, p := range params {
		size += raw.Float64.Size(p)
	}

	bs := make([]byte, size)
	n := copy(bs, magic)
	n += varint.Int.Marshal(Version, bs[n:])
	n += ord.String.Marshal(c.Architecture(), bs[n:])
	n += varint.Int.Marshal(spec.Dimensions, bs[n:])
	n += varint.Int.Marshal(spec.HiddenSize, bs[n:])
	n += varint.Int.Marshal(spec.MaxSequenceLength, bs[n:])
	n += ord.String.Marshal(spec.EmbeddingModel, bs[n:])
	n += varint.Int.Marshal(len(params), bs[n:])
	for _, p := range params {
		n += raw.Float64.Marshal(p, bs[n:])
	}
	return bs
}

// Header is the metadata stored ahead of the parameters.
type Header struct {
	Version        int
	Spec           model.Spec
	ParameterCount int
}

// ReadHeader decodes the metadata of an artifact blob.
func ReadHeader(data []byte) (Header, error) {
	h, _, err := readHeader(data)
	return h, err
}

func readHeader(data []byte) (h Header, n int, err error) {
	if !bytes.HasPrefix(data, magic) {
		return h, 0, fmt.Errorf("%w: not a classifier artifact", core.ErrPersistence)
	}
	n = len(magic)

	var n1 int
	h.Version, n1, err = varint.Int.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	if h.Version != Version {
		return h, n, fmt.Errorf("%w: unsupported artifact version %d", core.ErrPersistence, h.Version)
	}

	h.Spec.Architecture, n1, err = ord.String.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	h.Spec.Dimensions, n1, err = varint.Int.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	h.Spec.HiddenSize, n1, err = varint.Int.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	h.Spec.MaxSequenceLength, n1, err = varint.Int.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	h.Spec.EmbeddingModel, n1, err = ord.String.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	h.ParameterCount, n1, err = varint.Int.Unmarshal(data[n:])
	n += n1
	if err != nil {
		return h, n, truncated(err)
	}
	if h.ParameterCount < 0 {
		return h, n, fmt.Errorf("%w: negative parameter count", core.ErrPersistence)
	}
	return h, n, nil
}

// Decode restores a classifier from an artifact blob. When wantArch is not
// empty the stored architecture must match it. deps supplies collaborators
// the architecture needs, such as an embedder.
func Decode(data []byte, wantArch string, deps model.Deps) (model.Classifier, error) {
	h, n, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if wantArch != "" && h.Spec.Architecture != wantArch {
		return nil, fmt.Errorf("%w: artifact architecture %q does not match requested %q",
			core.ErrPersistence, h.Spec.Architecture, wantArch)
	}

	size := raw.Float64.Size(0)
	if remaining := len(data) - n; remaining%size != 0 || h.ParameterCount != remaining/size {
		return nil, fmt.Errorf("%w: expected %d parameters, found %d bytes", core.ErrPersistence, h.ParameterCount, remaining)
	}
	if err := h.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if want, ok := h.Spec.NumParameters(); !ok || want != h.ParameterCount {
		return nil, fmt.Errorf("%w: %s spec does not describe %d parameters", core.ErrPersistence, h.Spec.Architecture, h.ParameterCount)
	}
	params := make([]float64, h.ParameterCount)
	for i := range params {
		var n1 int
		params[i], n1, err = raw.Float64.Unmarshal(data[n:])
		n += n1
		if err != nil {
			return nil, truncated(err)
		}
	}

	c, err := model.New(h.Spec, 0, deps)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if err := c.SetParameters(params); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return c, nil
}

// Save writes c to path and returns the checksum of the written blob.
// The file is written to a temporary name in the same directory and renamed
// into place, so a failed save never leaves a partial artifact at path.
func Save(c model.Classifier, path string) (string, error) {
	data := Encode(c)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: writing %s: %w", core.ErrPersistence, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: syncing %s: %w", core.ErrPersistence, path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %w", core.ErrPersistence, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return Checksum(data), nil
}

// Load reads and decodes the artifact at path. See Decode for wantArch.
func Load(path, wantArch string, deps model.Deps) (model.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	return Decode(data, wantArch, deps)
}

// Checksum returns the hex BLAKE2b-256 digest of an artifact blob.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func truncated(err error) error {
	return fmt.Errorf("%w: truncated artifact: %w", core.ErrPersistence, err)
}
