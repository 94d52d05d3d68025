package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

func TestStoreError(t *testing.T) {
	base := errors.New("disk I/O error")
	err := &StoreError{Op: "AddTranscript", Kind: KindIO, Err: base}

	assert.Equal(t, "graph: AddTranscript (io): disk I/O error", err.Error())
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, &StoreError{Kind: KindIO})
	assert.ErrorIs(t, err, &StoreError{Kind: KindIO, Op: "AddTranscript"})
	assert.NotErrorIs(t, err, &StoreError{Kind: KindIO, Op: "ClearGraph"})
	assert.NotErrorIs(t, err, &StoreError{Kind: KindQuery})

	assert.Equal(t, "graph: Close: engine", (&StoreError{Op: "Close", Kind: KindEngine}).Error())
}

func TestKeyCollisionError(t *testing.T) {
	kc := &KeyCollisionError{Label: schema.Transcript, Key: "CALL_1", Err: errors.New("constraint failed")}
	wrapped := fmt.Errorf("ingest: %w", &StoreError{Op: "AddTranscript", Kind: KindKeyCollision, Err: kc})

	assert.True(t, IsKeyCollision(wrapped))
	assert.Contains(t, kc.Error(), `Transcript "CALL_1" already exists`)
	assert.False(t, IsKeyCollision(errors.New("other")))
}

func TestWrapErr(t *testing.T) {
	assert.NoError(t, wrapErr("Op", nil))

	for _, sentinel := range []error{ErrMissingField, ErrNodeNotFound, ErrInvalidArgument} {
		err := fmt.Errorf("context: %w", sentinel)
		assert.Same(t, err, wrapErr("Op", err))
	}

	err := wrapErr("Op", errors.New("boom"))
	var se *StoreError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, KindEngine, se.Kind)
}
