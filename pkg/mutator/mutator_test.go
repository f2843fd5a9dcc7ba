/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package mutator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXorshiftDeterministic(t *testing.T) {
	a := NewXorshift(0x1337fe44)
	b := NewXorshift(0x1337fe44)

	for i := 0; i < 16; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestXorshiftDiffersAcrossSeeds(t *testing.T) {
	a := NewXorshift(1)
	b := NewXorshift(2)
	assert.NotEqual(t, a.Next(), b.Next())
}

func TestMutateSameSeedSameSequence(t *testing.T) {
	image1 := []byte("\xff\xd8\xff\xe0the rest of a jpeg body padded out")
	image2 := append([]byte(nil), image1...)

	m1 := New(image1, 0x1337fe44)
	m2 := New(image2, 0x1337fe44)

	for i := 0; i < 10; i++ {
		idx1, val1, ok1 := m1.Mutate()
		idx2, val2, ok2 := m2.Mutate()
		require.Equal(t, idx1, idx2)
		require.Equal(t, val1, val2)
		require.Equal(t, ok1, ok2)
	}

	assert.Equal(t, m1.Image(), m2.Image())
}

func TestMutateNeverTouchesHeaderGuard(t *testing.T) {
	image := make([]byte, 64)
	m := New(image, 42)

	for i := 0; i < 1000; i++ {
		idx, _, ok := m.Mutate()
		if ok {
			assert.Greater(t, idx, HeaderGuard)
		}
	}
}

func TestNewPanicsOnZeroSeed(t *testing.T) {
	assert.Panics(t, func() {
		New(make([]byte, 16), 0)
	})
}

func TestNewPanicsOnTinyImage(t *testing.T) {
	assert.Panics(t, func() {
		New(make([]byte, HeaderGuard), 1)
	})
}
