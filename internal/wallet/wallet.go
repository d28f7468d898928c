package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cinafi/leverbot/internal/domain"
)

// Wallet holds the externally-owned account used to submit transactions.
// Each submitted action is a single EOA transaction; all-or-nothing
// semantics come from the chain, not from this code.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// New resolves the private key from cfg and binds the wallet to chainID.
// A missing key source maps to domain.ErrWalletNotConfigured so callers can
// surface the wallet-not-connected condition.
func New(cfg KeyConfig, chainID int64) (*Wallet, error) {
	keyHex, err := loadKeyHex(cfg)
	if err != nil {
		if cfg.RawPrivateKey == "" && cfg.EncryptedKeyPath == "" {
			return nil, domain.ErrWalletNotConfigured
		}
		return nil, err
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("wallet: parsing private key: %w", err)
	}

	id := big.NewInt(chainID)
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}, nil
}

// Address returns the account address derived from the key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// ChainID returns the chain the wallet signs for.
func (w *Wallet) ChainID() *big.Int {
	return w.chainID
}

// SignTx signs tx with the wallet key. A signing failure maps to
// domain.ErrSigningRejected.
func (w *Wallet) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigningRejected, err)
	}
	return signed, nil
}
