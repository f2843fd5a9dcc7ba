/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package corpus manages the on-disk crash corpus: every mutated input
// that made a target stop abnormally is written under a content-addressed
// name, so identical crashing inputs discovered on different runs collapse
// to one file instead of accumulating duplicates.
package corpus

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// Store writes crash-triggering inputs to a directory on disk, naming each
// file after the SHA-256 digest of its content.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating dir if it does not
// already exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create crash corpus directory %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Digest returns the content digest of image, the name under which Save
// would store it.
func Digest(image []byte) digest.Digest {
	return digest.FromBytes(image)
}

// Save writes image under its content digest and returns the digest and
// the path it was written to. If a file already exists at that path, its
// content is assumed identical (the digest already proves that) and it is
// left untouched.
func (s *Store) Save(image []byte) (digest.Digest, string, error) {
	d := Digest(image)
	path := s.Path(d)

	if _, err := os.Stat(path); err == nil {
		return d, path, nil
	} else if !os.IsNotExist(err) {
		return "", "", errors.Wrapf(err, "stat crash corpus entry %s", path)
	}

	tmp, err := os.CreateTemp(s.dir, "."+d.Encoded()+"-*")
	if err != nil {
		return "", "", errors.Wrap(err, "create temporary crash corpus file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(image)); err != nil {
		tmp.Close()
		return "", "", errors.Wrap(err, "write crash corpus file")
	}
	if err := tmp.Close(); err != nil {
		return "", "", errors.Wrap(err, "close crash corpus file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", "", errors.Wrapf(err, "rename crash corpus file into place at %s", path)
	}

	return d, path, nil
}

// Path returns the path Save would use for d, regardless of whether it has
// been written yet.
func (s *Store) Path(d digest.Digest) string {
	return filepath.Join(s.dir, d.Encoded()+".bin")
}
