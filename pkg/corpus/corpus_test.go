/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWritesContentAddressedFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.Nil(t, err)

	image := []byte("crash me")
	d, path, err := s.Save(image)
	require.Nil(t, err)
	assert.Equal(t, Digest(image), d)
	assert.Equal(t, s.Path(d), path)

	got, err := os.ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, image, got)
}

func TestSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.Nil(t, err)

	image := []byte("same crash twice")
	_, path1, err := s.Save(image)
	require.Nil(t, err)
	_, path2, err := s.Save(image)
	require.Nil(t, err)
	assert.Equal(t, path1, path2)

	entries, err := os.ReadDir(filepath.Dir(path1))
	require.Nil(t, err)
	assert.Len(t, entries, 1)
}

func TestDifferentContentDifferentPath(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.Nil(t, err)

	_, path1, err := s.Save([]byte("a"))
	require.Nil(t, err)
	_, path2, err := s.Save([]byte("b"))
	require.Nil(t, err)
	assert.NotEqual(t, path1, path2)
}
