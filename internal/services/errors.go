package services

import "errors"

var (
	ErrSensorUnavailable = errors.New("sensor unavailable")
	ErrStorageWrite      = errors.New("storage write failed")
	ErrStorageRead       = errors.New("storage read failed")
	ErrTransportSend     = errors.New("transport send failed")
	ErrProtocol          = errors.New("protocol error")
	ErrConfiguration     = errors.New("configuration error")
)
