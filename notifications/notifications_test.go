package notifications_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunodl/notifications"
)

func TestAddURI(t *testing.T) {
	t.Parallel()

	var n notifications.Notifications
	require.NoError(t, n.AddURI(notifications.Complete, "generic://example.com/hook"))
	require.NoError(t, n.AddURI(notifications.NeedsSignIn, "generic://example.com/hook"))

	err := n.AddURI("no-such-event", "generic://example.com/hook")
	assert.ErrorIs(t, err, notifications.ErrUnknownEvent)

	var got int
	n.IterMappings(func(notifications.Event, string) { got++ })
	assert.Equal(t, 2, got)
}

func TestSendNoMappings(t *testing.T) {
	t.Parallel()

	// no uris for the event, nothing to do
	var n notifications.Notifications
	n.Send(t.Context(), notifications.Complete, "hello")
}
