package protocol

import "errors"

var (
	ErrUnknownSetting      = errors.New("protocol: unknown setting")
	ErrReceiptToken        = errors.New("protocol: receipt tokens are minted by their vault only")
	ErrAlreadyBootstrapped = errors.New("protocol: already bootstrapped")
)
