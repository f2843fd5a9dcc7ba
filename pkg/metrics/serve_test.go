/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/coverage"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	addr := l.Addr().String()
	require.Nil(t, l.Close())
	return addr
}

func TestNewServerRequiresListenAddr(t *testing.T) {
	_, err := NewServer(WithCounters(coverage.NewCounters(4)))
	require.Error(t, err)
}

func TestNewServerRequiresCounters(t *testing.T) {
	_, err := NewServer(WithListenAddr(":0"))
	require.Error(t, err)
}

func TestServerServesStatusAndMetrics(t *testing.T) {
	addr := freePort(t)
	counters := coverage.NewCounters(4)
	counters.IncrementHit()

	srv, err := NewServer(
		WithListenAddr(addr),
		WithCounters(counters),
		WithRunsCounter(func() uint64 { return 7 }),
	)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(fmt.Sprintf("http://%s/v1/status", addr))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Nil(t, err)
	defer resp.Body.Close()

	var doc status
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, 1, doc.Hit)
	assert.Equal(t, 4, doc.TotalOriginal)
	assert.Equal(t, 25.0, doc.Percent)
	assert.Equal(t, uint64(7), doc.Runs)

	metricsResp, err := http.Get(fmt.Sprintf("http://%s/v1/metrics", addr))
	require.Nil(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)

	cancel()
	require.Nil(t, <-done)
}
