/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/errdefs"
)

func Test_campaign(t *testing.T) {
	rootDir := "testdata/campaigns"
	err := os.MkdirAll(rootDir, 0755)
	require.Nil(t, err)
	defer func() {
		_ = os.RemoveAll(rootDir)
	}()

	db, err := NewDatabase(rootDir)
	require.Nil(t, err)
	defer db.Close()

	ctx := context.TODO()
	now := time.Unix(1700000000, 0)

	c1 := &CampaignRecord{ID: "c1", Target: "djpeg", StartedAt: now, UpdatedAt: now}
	require.Nil(t, db.SaveCampaign(ctx, c1))

	// duplicate ID should fail
	err = db.SaveCampaign(ctx, c1)
	require.Error(t, err)
	assert.True(t, errdefs.IsAlreadyExists(err))

	c1.RunCount = 42
	require.Nil(t, db.UpdateCampaign(ctx, c1))

	got, err := db.GetCampaign(ctx, "c1")
	require.Nil(t, err)
	assert.Equal(t, uint64(42), got.RunCount)

	_, err = db.GetCampaign(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))

	// updating a record that was never saved fails
	err = db.UpdateCampaign(ctx, &CampaignRecord{ID: "never-saved"})
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
}

func Test_crashes(t *testing.T) {
	rootDir := "testdata/crashes"
	err := os.MkdirAll(rootDir, 0755)
	require.Nil(t, err)
	defer func() {
		_ = os.RemoveAll(rootDir)
	}()

	db, err := NewDatabase(rootDir)
	require.Nil(t, err)
	defer db.Close()

	ctx := context.TODO()

	require.Nil(t, db.AddCrash(ctx, &CrashRecord{ID: "x1", CampaignID: "c1", RunIndex: 3}))
	require.Nil(t, db.AddCrash(ctx, &CrashRecord{ID: "x2", CampaignID: "c1", RunIndex: 7}))
	require.Nil(t, db.AddCrash(ctx, &CrashRecord{ID: "y1", CampaignID: "c2", RunIndex: 1}))

	var c1Crashes []string
	err = db.WalkCrashes(ctx, "c1", func(rec *CrashRecord) error {
		c1Crashes = append(c1Crashes, rec.ID)
		return nil
	})
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{"x1", "x2"}, c1Crashes)

	var all []string
	err = db.WalkCrashes(ctx, "", func(rec *CrashRecord) error {
		all = append(all, rec.ID)
		return nil
	})
	require.Nil(t, err)
	assert.Len(t, all, 3)
}
