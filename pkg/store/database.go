/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package store persists campaign and crash records across process
// restarts in an embedded bbolt database, so a campaign's run counter and
// crash history remain readable after the tracefuzz process exits.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/errdefs"
)

const databaseFileName = "tracefuzz.db"

// Bucket names:
// Buckets hierarchy:
//	- v1:
//		- campaigns
//		- crashes

var (
	v1RootBucket   = []byte("v1")
	versionKey     = []byte("version")
	campaignBucket = []byte("campaigns")
	crashBucket    = []byte("crashes")
)

// CampaignRecord is the durable state of one fuzzing campaign: how many
// runs it has driven so far and the campaign seed its mutator was started
// from. Nothing in this repository resumes a campaign from a stored record.
type CampaignRecord struct {
	ID        string
	Target    string
	RunCount  uint64
	NextSeed  uint64
	StartedAt time.Time
	UpdatedAt time.Time
}

// CrashRecord is the durable record of one crashing run: which campaign
// produced it, which run number within that campaign, and the content
// digest of the mutated input that was fed to the target.
type CrashRecord struct {
	ID         string
	CampaignID string
	RunIndex   uint64
	Digest     string
	Signal     int
	ExitCode   int
	RecordedAt time.Time
}

// Database keeps campaign and crash records that need to survive a
// tracefuzz process restart.
type Database struct {
	db *bolt.DB
}

// NewDatabase creates or opens the database file under rootDir.
func NewDatabase(rootDir string) (*Database, error) {
	f := filepath.Join(rootDir, databaseFileName)
	if err := ensureDirectory(filepath.Dir(f)); err != nil {
		return nil, err
	}

	opts := bolt.Options{Timeout: 4 * time.Second}

	db, err := bolt.Open(f, 0600, &opts)
	if err != nil {
		return nil, err
	}
	d := &Database{db: db}
	if err := d.initDatabase(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}
	return d, nil
}

func ensureDirectory(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}

func getCampaignBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(v1RootBucket).Bucket(campaignBucket)
}

func getCrashBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(v1RootBucket).Bucket(crashBucket)
}

func putObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	keyBytes := []byte(key)

	if bucket.Get(keyBytes) != nil {
		return errdefs.ErrAlreadyExists
	}

	value, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	return errors.Wrapf(bucket.Put(keyBytes, value), "put key %s", key)
}

func updateObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	value, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	return errors.Wrapf(bucket.Put([]byte(key), value), "put key %s", key)
}

func getObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	value := bucket.Get([]byte(key))
	if value == nil {
		return errdefs.ErrNotFound
	}

	return errors.Wrapf(json.Unmarshal(value, obj), "unmarshal %s", key)
}

func (db *Database) initDatabase() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(v1RootBucket)
		if err != nil {
			return err
		}

		if _, err := bk.CreateBucketIfNotExists(campaignBucket); err != nil {
			return errors.Wrapf(err, "bucket %s", campaignBucket)
		}
		if _, err := bk.CreateBucketIfNotExists(crashBucket); err != nil {
			return errors.Wrapf(err, "bucket %s", crashBucket)
		}

		if bk.Get(versionKey) == nil {
			return bk.Put(versionKey, []byte("v1.0"))
		}
		return nil
	})
}

// Close closes the underlying database file.
func (db *Database) Close() error {
	return errors.Wrap(db.db.Close(), "failed to close boltdb")
}

// SaveCampaign inserts a new campaign record. Returns errdefs.ErrAlreadyExists
// if the ID is already taken.
func (db *Database) SaveCampaign(ctx context.Context, rec *CampaignRecord) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return putObject(getCampaignBucket(tx), rec.ID, rec)
	})
}

// UpdateCampaign overwrites an existing campaign record. Returns
// errdefs.ErrNotFound if no record exists yet for rec.ID.
func (db *Database) UpdateCampaign(ctx context.Context, rec *CampaignRecord) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		bucket := getCampaignBucket(tx)

		var existing CampaignRecord
		if err := getObject(bucket, rec.ID, &existing); err != nil {
			return err
		}

		return updateObject(bucket, rec.ID, rec)
	})
}

// GetCampaign fetches a campaign record by ID.
func (db *Database) GetCampaign(ctx context.Context, id string) (*CampaignRecord, error) {
	var rec CampaignRecord
	err := db.db.View(func(tx *bolt.Tx) error {
		return getObject(getCampaignBucket(tx), id, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// WalkCampaigns iterates all campaign records in storage order.
func (db *Database) WalkCampaigns(ctx context.Context, cb func(rec *CampaignRecord) error) error {
	return db.db.View(func(tx *bolt.Tx) error {
		return getCampaignBucket(tx).ForEach(func(key, value []byte) error {
			rec := &CampaignRecord{}
			if err := json.Unmarshal(value, rec); err != nil {
				return errors.Wrapf(err, "unmarshal %s", key)
			}
			return cb(rec)
		})
	})
}

// AddCrash inserts a new crash record, keyed by its own ID.
func (db *Database) AddCrash(ctx context.Context, rec *CrashRecord) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return putObject(getCrashBucket(tx), rec.ID, rec)
	})
}

// WalkCrashes iterates all crash records belonging to campaignID. An empty
// campaignID matches every campaign's crashes.
func (db *Database) WalkCrashes(ctx context.Context, campaignID string, cb func(rec *CrashRecord) error) error {
	return db.db.View(func(tx *bolt.Tx) error {
		return getCrashBucket(tx).ForEach(func(key, value []byte) error {
			rec := &CrashRecord{}
			if err := json.Unmarshal(value, rec); err != nil {
				return errors.Wrapf(err, "unmarshal %s", key)
			}
			if campaignID != "" && rec.CampaignID != campaignID {
				return nil
			}
			return cb(rec)
		})
	})
}
