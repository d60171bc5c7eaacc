// SPDX-License-Identifier: GPL-3.0-or-later

package worker

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/pathspider/internal/configurator"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/record"
)

// stubConnector records every (job, config) it is asked to connect and
// always succeeds.
type stubConnector struct {
	config int
	mu     sync.Mutex
	calls  []string
}

func (c *stubConnector) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	c.mu.Lock()
	c.calls = append(c.calls, req.Job.ID)
	c.mu.Unlock()
	return record.Active{JobID: req.Job.ID, Config: req.Config, State: record.StateOK}
}

func TestRunSynchronizedBarrier(t *testing.T) {
	// 100 jobs x 2 configs, 8 workers: the sequence of observed prepare
	// calls must be exactly 0, 1 and no configuration-1 probe may start
	// before the last configuration-0 probe completes.
	const numJobs = 100

	var prepareOrder []int
	var prepareMu sync.Mutex
	var config0InFlight int32
	var config1StartedWhileConfig0Active bool

	c0 := &stubConnector{config: 0}
	c1 := &stubConnector{config: 1}

	trackingConnector := func(inner *stubConnector, idx int) *trackingStub {
		return &trackingStub{inner: inner, idx: idx,
			onStart: func() {
				if idx == 0 {
					atomic.AddInt32(&config0InFlight, 1)
				} else if atomic.LoadInt32(&config0InFlight) > 0 {
					config1StartedWhileConfig0Active = true
				}
			},
			onEnd: func() {
				if idx == 0 {
					atomic.AddInt32(&config0InFlight, -1)
				}
			},
		}
	}

	pool := New(Config{
		Workers:    8,
		Connectors: Connectors{trackingConnector(c0, 0), trackingConnector(c1, 1)},
		Configurator: configurator.NewSynchronized(func(ctx context.Context, c int) error {
			prepareMu.Lock()
			prepareOrder = append(prepareOrder, c)
			prepareMu.Unlock()
			return nil
		}, nil),
		OnActive: func(job.Job, record.Active) {},
	})

	jobs := make([]job.Job, numJobs)
	for i := range jobs {
		jobs[i] = job.Job{ID: fmt.Sprintf("job-%d", i), Addr: netip.MustParseAddrPort("203.0.113.1:80")}
	}

	require.NoError(t, pool.RunSynchronized(context.Background(), jobs))

	assert.Equal(t, []int{0, 1}, prepareOrder)
	assert.False(t, config1StartedWhileConfig0Active)
	assert.Len(t, c0.calls, numJobs)
	assert.Len(t, c1.calls, numJobs)
}

type trackingStub struct {
	inner   *stubConnector
	idx     int
	onStart func()
	onEnd   func()
}

func (t *trackingStub) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	t.onStart()
	defer t.onEnd()
	return t.inner.Connect(ctx, req, addr)
}

func TestRunDesynchronizedThreadsScratch(t *testing.T) {
	var baselineFailedSeen bool
	var mu sync.Mutex

	failBaseline := connectorFunc(func(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
		return record.Active{JobID: req.Job.ID, Config: 0, State: record.StateFailed}
	})
	checkSkip := connectorFunc(func(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
		mu.Lock()
		baselineFailedSeen = req.Scratch.BaselineFailed
		mu.Unlock()
		if req.Scratch.BaselineFailed {
			return record.Active{JobID: req.Job.ID, Config: 1, State: record.StateSkipped}
		}
		return record.Active{JobID: req.Job.ID, Config: 1, State: record.StateOK}
	})

	var results []record.Active
	pool := New(Config{
		Workers:      4,
		Connectors:   Connectors{failBaseline, checkSkip},
		Configurator: configurator.Desynchronized{},
		OnActive: func(j job.Job, a record.Active) {
			mu.Lock()
			results = append(results, a)
			mu.Unlock()
		},
	})

	jobs := make(chan job.Job, 1)
	jobs <- job.Job{ID: "job-1", Addr: netip.MustParseAddrPort("203.0.113.1:80")}
	close(jobs)

	require.NoError(t, pool.RunDesynchronized(context.Background(), jobs))
	assert.True(t, baselineFailedSeen)
	assert.Len(t, results, 2)
	assert.Equal(t, record.StateSkipped, results[1].State)
}

type connectorFunc func(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active

func (f connectorFunc) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	return f(ctx, req, addr)
}
