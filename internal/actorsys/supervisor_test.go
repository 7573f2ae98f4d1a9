package actorsys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorPropagatesFirstError(t *testing.T) {
	s := New(context.Background())
	boom := errors.New("boom")
	s.Go(func() error { return boom })
	s.Go(func() error {
		<-s.Context().Done()
		return nil
	})
	assert.ErrorIs(t, s.Wait(), boom)
}

func TestSupervisorContextCancelsSiblingsOnError(t *testing.T) {
	s := New(context.Background())
	s.Go(func() error { return errors.New("fail fast") })
	done := make(chan struct{})
	s.Go(func() error {
		select {
		case <-s.Context().Done():
			close(done)
		case <-time.After(2 * time.Second):
		}
		return nil
	})
	s.Wait()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "sibling goroutine was not cancelled after peer error")
	}
}
