package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoneycombSetup_Disabled(t *testing.T) {
	shutdown, err := HoneycombSetup(false, "confhub-test", nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartAndEndSpan(t *testing.T) {
	ctx, span := Start(context.Background(), "test.span")
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		EndSpan(span, errors.New("boom"))
	})

	_, span = Start(context.Background(), "test.span.ok")
	assert.NotPanics(t, func() {
		EndSpan(span, nil)
	})
}
