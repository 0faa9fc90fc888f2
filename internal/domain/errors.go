package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrBadMessage   = errors.New("malformed feed message")
)
