package throughput

import (
	"context"
	"errors"
)

// Request describes one outbound request.
type Request struct {
	// Group names the throughput control group; empty selects the default group.
	Group string

	// PriorityLevel is set from the resolved group when unset.
	PriorityLevel PriorityLevel
}

// Charged is implemented by responses and errors that report the request units they consumed.
type Charged interface {
	RequestCharge() float64
}

// Response is the result of a throttled call.
type Response interface {
	Charged
}

// Call performs the outbound request.
type Call func(ctx context.Context) (Response, error)

// chargeOf reads the charge of a finished call. A failed call is charged
// only when its error reports a charge.
func chargeOf(resp Response, err error) float64 {
	if err != nil {
		var charged Charged
		if errors.As(err, &charged) {
			return charged.RequestCharge()
		}

		return 0
	}
	if resp == nil {
		return 0
	}

	return resp.RequestCharge()
}
