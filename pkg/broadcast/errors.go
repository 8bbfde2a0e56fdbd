package broadcast

import "errors"

// ErrBroadcasterClosed is returned by Broadcast after Close.
var ErrBroadcasterClosed = errors.New("broadcast: broadcaster is closed")
