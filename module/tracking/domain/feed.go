package domain

// FeedState is the live feed connector's connection state.
type FeedState string

const (
	FeedConnecting   FeedState = "connecting"
	FeedConnected    FeedState = "connected"
	FeedDisconnected FeedState = "disconnected"
)
