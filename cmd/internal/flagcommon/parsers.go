package flagcommon

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"sunodl/notifications"
)

var _ flag.Value = notificationsParser{}

type notificationsParser struct{ *notifications.Notifications }

func (n notificationsParser) String() string { return "" }
func (n notificationsParser) Set(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("invalid notification uri format. expected eg \"ev1,ev2 uri\"")
	}
	var lineErrs []error
	for _, ev := range strings.Split(eventsRaw, ",") {
		ev, uri = strings.TrimSpace(ev), strings.TrimSpace(uri)
		err := n.AddURI(notifications.Event(ev), uri)
		lineErrs = append(lineErrs, err)
	}
	return errors.Join(lineErrs...)
}
