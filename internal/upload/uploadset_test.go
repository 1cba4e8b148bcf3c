package upload

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/vectorlink/bulkxfer/internal/store/storetest"
)

// TestSetPartitionedSends verifies concurrent sends against different indices
// land in their own objects, keyed prefix+index.
func TestSetPartitionedSends(t *testing.T) {
	const partSize = 64
	const partitions = 4
	fake := storetest.New()

	set, err := NewSetWithPartSize(context.Background(), fake, "vectors", "shard-", partitions, partSize, testLogger())
	if err != nil {
		t.Fatalf("NewSetWithPartSize failed: %v", err)
	}
	if set.Len() != partitions {
		t.Fatalf("set has %d uploads, want %d", set.Len(), partitions)
	}

	// Each partition gets a distinct payload, streamed concurrently.
	payloads := make([][]byte, partitions)
	for i := range payloads {
		payload := make([]byte, partSize*2+i)
		for j := range payload {
			payload[j] = byte(i)
		}
		payloads[i] = payload
	}

	var wg sync.WaitGroup
	errs := make([]error, partitions)
	for i := 0; i < partitions; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			data := payloads[index]
			for len(data) > 0 {
				n := 48
				if n > len(data) {
					n = len(data)
				}
				if err := set.Send(context.Background(), index, data[:n]); err != nil {
					errs[index] = err
					return
				}
				data = data[n:]
			}
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("partition %d send failed: %v", i, err)
		}
	}

	if err := set.Complete(context.Background()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	for i := 0; i < partitions; i++ {
		got, ok := fake.ObjectData("vectors", fmt.Sprintf("shard-%d", i))
		if !ok {
			t.Fatalf("partition %d was not finalized", i)
		}
		if !bytes.Equal(got, payloads[i]) {
			t.Fatalf("partition %d content mismatch", i)
		}
	}
}

// TestSetSendRejectsBadIndex verifies out-of-range indices fail cleanly.
func TestSetSendRejectsBadIndex(t *testing.T) {
	fake := storetest.New()
	set, err := NewSet(context.Background(), fake, "vectors", "shard-", 2, testLogger())
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	if err := set.Send(context.Background(), 2, []byte("x")); err == nil {
		t.Fatalf("expected an error for index out of range")
	}
}

// TestSetStatesRoundTrip verifies a set's aggregate state resumes into an
// equivalent set.
func TestSetStatesRoundTrip(t *testing.T) {
	const partSize = 64
	fake := storetest.New()

	set, err := NewSetWithPartSize(context.Background(), fake, "vectors", "shard-", 2, partSize, testLogger())
	if err != nil {
		t.Fatalf("NewSetWithPartSize failed: %v", err)
	}

	states := set.States()
	if len(states.Uploads) != 2 {
		t.Fatalf("got %d states, want 2", len(states.Uploads))
	}

	resumed, err := ResumeSet(fake, states, testLogger())
	if err != nil {
		t.Fatalf("ResumeSet failed: %v", err)
	}
	if err := resumed.Send(context.Background(), 1, patternBytes(10)); err != nil {
		t.Fatalf("Send on resumed set failed: %v", err)
	}
	if err := resumed.Complete(context.Background()); err != nil {
		t.Fatalf("Complete on resumed set failed: %v", err)
	}

	got, ok := fake.ObjectData("vectors", "shard-1")
	if !ok {
		t.Fatalf("shard-1 was not finalized")
	}
	if !bytes.Equal(got, patternBytes(10)) {
		t.Fatalf("shard-1 content mismatch")
	}
}
