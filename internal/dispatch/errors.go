// AngelaMos | 2026
// errors.go

package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoRecipients = errors.New("no eligible recipients")
	ErrInProgress   = errors.New("dispatch already in progress")
)

// DeliveryError is one recipient the provider did not accept. It is logged
// and counted, never returned to the caller of a batch.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", maskEmail(e.Recipient), e.Err)
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}

// ProviderError is a non-2xx answer from the email provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("email provider returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether resending may succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// maskEmail keeps only the domain so addresses stay out of logs.
func maskEmail(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return "***"
	}
	return "***" + addr[at:]
}
