package entities

import "errors"

var (
	// ErrSourceUnavailable means the container listing could not be obtained.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrContainerFetch means the highlights of one container could not be
	// read completely.
	ErrContainerFetch = errors.New("container fetch failed")

	// ErrMalformedRecord marks a single source record that can never be
	// decoded. It fails that record only; the container's other records are
	// still read.
	ErrMalformedRecord = errors.New("malformed highlight record")
)
