package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindRateLimited
	KindServer
	KindClient
	KindTimeout
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server_error"
	case KindClient:
		return "client_error"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse_error"
	}
	return "unknown"
}

// FetchError is returned by GetJSON. Transport names the client that made the
// final attempt ("primary" or "secondary").
type FetchError struct {
	Kind      Kind
	URL       string
	Status    int
	Transport string
	Err       error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s (%s, %s, status %d): %v", e.URL, e.Transport, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s, %s): %v", e.URL, e.Transport, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first FetchError in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
