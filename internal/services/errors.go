package services

import "errors"

// Sentinel errors surfaced by the services layer. Handlers map these to HTTP
// status codes with errors.Is; anything unmatched is reported as an internal
// error without leaking gateway details.
var (
	ErrInvalidPriceID           = errors.New("invalid price id")
	ErrInvalidPayload           = errors.New("invalid notification payload")
	ErrUnknownTransactionStatus = errors.New("unknown transaction status")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
)
