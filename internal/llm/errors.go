package llm

import (
	"errors"
	"strings"
)

// ErrFatalAPI marks provider errors that retrying will not fix (bad key, exhausted quota).
var ErrFatalAPI = errors.New("fatal provider error")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"accessdenied",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// wrapFatalError tags err with ErrFatalAPI when it looks permanent.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return errors.Join(ErrFatalAPI, err)
}
