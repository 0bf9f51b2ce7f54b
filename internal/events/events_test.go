package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, any) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestEmitSwallowsPublishErrors(t *testing.T) {
	p := &failingPublisher{}
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, DatasetFlagged, map[string]string{"id": "x"})
	})
	assert.Equal(t, 1, p.calls)
}

func TestEmitNilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, DatasetDeleted, nil)
	})
}

func TestMemoryPublisherKeepsOrder(t *testing.T) {
	m := &MemoryPublisher{}
	Emit(context.Background(), m, DatasetUploaded, nil)
	Emit(context.Background(), m, PurchaseCompleted, nil)
	assert.Equal(t, []string{DatasetUploaded, PurchaseCompleted}, m.Types())
}
