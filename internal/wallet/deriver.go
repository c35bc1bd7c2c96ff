package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrDerivation means the configured key material is unusable. Fatal for
	// the affected gateway; the index counter is never touched.
	ErrDerivation = errors.New("invalid extended public key")

	// ErrInvalidChild means this particular index cannot produce a key
	// (roughly 1 in 2^127). The caller burns the index and moves on.
	ErrInvalidChild = errors.New("index produced an invalid child key")
)

// Deriver derives receive addresses from an account-level xpub along the
// external chain (m/0/i), without ever holding private keys.
type Deriver struct {
	external *hdkeychain.ExtendedKey
	params   *chaincfg.Params
}

// NetParams maps a config network name to chain parameters.
func NetParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	default:
		return nil, fmt.Errorf("unknown network %q: %w", network, ErrDerivation)
	}
}

func NewDeriver(xpub string, network string) (*Deriver, error) {
	params, err := NetParams(network)
	if err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, fmt.Errorf("parsing extended key: %w: %v", ErrDerivation, err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("refusing private extended key: %w", ErrDerivation)
	}
	if !key.IsForNet(params) {
		return nil, fmt.Errorf("extended key is for a different network than %s: %w", params.Name, ErrDerivation)
	}

	external, err := key.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("deriving external chain: %w: %v", ErrDerivation, err)
	}

	return &Deriver{external: external, params: params}, nil
}

// Derive returns the P2PKH address at m/0/index. The same (xpub, index) pair
// always yields the same address.
func (d *Deriver) Derive(index uint32) (string, error) {
	child, err := d.external.Derive(index)
	if err != nil {
		if errors.Is(err, hdkeychain.ErrInvalidChild) {
			return "", fmt.Errorf("index %d: %w", index, ErrInvalidChild)
		}
		return "", fmt.Errorf("deriving index %d: %w: %v", index, ErrDerivation, err)
	}

	addr, err := child.Address(d.params)
	if err != nil {
		return "", fmt.Errorf("encoding address at index %d: %w: %v", index, ErrDerivation, err)
	}

	return addr.EncodeAddress(), nil
}
