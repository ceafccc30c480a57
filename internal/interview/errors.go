package interview

import "errors"

var (
	ErrBusy              = errors.New("interview: a turn is already in flight")
	ErrNoMediaStream     = errors.New("interview: no active media stream")
	ErrUnsupportedFormat = errors.New("interview: no supported recording format")
	ErrPermissionDenied  = errors.New("interview: microphone permission denied")
	ErrSessionClosed     = errors.New("interview: session has ended")
	ErrEmptyText         = errors.New("interview: text is empty")
	ErrEmptyResponse     = errors.New("interview: model returned an empty reply")
	ErrInvalidSettings   = errors.New("interview: invalid settings")
)
