package comm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGroup executes body once per rank, each rank on its own goroutine, and
// fails the test on the first error.
func runGroup(t *testing.T, ranks []*Local, body func(c Communicator) error) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, len(ranks))
	for _, c := range ranks {
		wg.Add(1)
		go func(c Communicator) {
			defer wg.Done()
			errs <- body(c)
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestSendRecvPreservesOrder(t *testing.T) {
	ranks := NewGroup(2)
	ctx := context.Background()

	messages := [][]byte{[]byte("first"), []byte("second"), []byte("third")}

	runGroup(t, ranks, func(c Communicator) error {
		if c.Rank() == 1 {
			for _, m := range messages {
				if err := c.Send(ctx, 0, m); err != nil {
					return err
				}
			}
			return nil
		}
		for _, want := range messages {
			got, err := c.Recv(ctx, 1)
			if err != nil {
				return err
			}
			assert.Equal(t, want, got)
		}
		return nil
	})
}

func TestSendCopiesPayload(t *testing.T) {
	ranks := NewGroup(2)
	ctx := context.Background()

	buf := []byte{1, 2, 3}
	require.NoError(t, ranks[1].Send(ctx, 0, buf))
	buf[0] = 99

	got, err := ranks[0].Recv(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestSelfDeliveryDoesNotBlock(t *testing.T) {
	ranks := NewGroup(1)
	ctx := context.Background()

	// A rank can queue any number of messages to itself before receiving.
	for i := 0; i < 100; i++ {
		require.NoError(t, ranks[0].Send(ctx, 0, []byte{byte(i)}))
	}
	for i := 0; i < 100; i++ {
		got, err := ranks[0].Recv(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, got)
	}
}

func TestGatherInt64(t *testing.T) {
	ranks := NewGroup(3)
	ctx := context.Background()

	var mu sync.Mutex
	var rootValues []int64
	runGroup(t, ranks, func(c Communicator) error {
		values, err := c.GatherInt64(ctx, 0, int64(10*(c.Rank()+1)))
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			mu.Lock()
			rootValues = values
			mu.Unlock()
		} else {
			assert.Nil(t, values)
		}
		return nil
	})
	assert.Equal(t, []int64{10, 20, 30}, rootValues)
}

func TestAllreduceMinInt64(t *testing.T) {
	ranks := NewGroup(4)
	ctx := context.Background()

	values := []int64{42, -7, 13, 99}
	runGroup(t, ranks, func(c Communicator) error {
		min, err := c.AllreduceMinInt64(ctx, values[c.Rank()])
		if err != nil {
			return err
		}
		assert.Equal(t, int64(-7), min)
		return nil
	})
}

func TestRecvHonorsContextCancellation(t *testing.T) {
	ranks := NewGroup(2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := ranks[0].Recv(ctx, 1)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
