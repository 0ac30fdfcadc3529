package broadcast

import "errors"

var (
	errClosedSink = errors.New("broadcast: sink is closed")
	errSinkFull   = errors.New("broadcast: outbound buffer full")
)
