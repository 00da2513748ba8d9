package entitysync

import "context"

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

// Online calls f.
func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// StaticConnectivity always reports its own value.
type StaticConnectivity bool

// Online returns s.
func (s StaticConnectivity) Online(context.Context) bool { return bool(s) }

// AlwaysOnline never short-circuits a sync.
var AlwaysOnline Connectivity = StaticConnectivity(true)
