package actor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStorageWriterRunsJobsInOrder(t *testing.T) {
	w := NewStorageWriter(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go w.Run(ctx)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := w.Write(ctx, func() error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", order)
		}
	}
}

func TestStorageWriterPropagatesJobError(t *testing.T) {
	w := NewStorageWriter(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go w.Run(ctx)

	wantErr := errors.New("disk full")
	err := w.Write(ctx, func() error { return wantErr })
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
