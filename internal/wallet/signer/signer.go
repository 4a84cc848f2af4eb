package signer

import (
	"github.com/ethereum/go-ethereum/common"
)

// Signer is the handle a wallet session exposes to callers.
type Signer interface {
	Address() common.Address
	SignMessage(msg []byte) ([]byte, error)
}
