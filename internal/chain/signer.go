package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces the admin signatures the vault checks before changing a balance.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse admin key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// BalanceDigest is keccak256(abi.encodePacked(action, user, amount, nonce, vault, chainId)).
func BalanceDigest(action string, user common.Address, amount, nonce *big.Int, vault common.Address, chainID *big.Int) []byte {
	return crypto.Keccak256(
		[]byte(action),
		user.Bytes(),
		math.U256Bytes(new(big.Int).Set(amount)),
		math.U256Bytes(new(big.Int).Set(nonce)),
		vault.Bytes(),
		math.U256Bytes(new(big.Int).Set(chainID)),
	)
}

// WithdrawDigest adds the deadline after the nonce so an expired authorization cannot be replayed.
func WithdrawDigest(user common.Address, amount, nonce, deadline *big.Int, vault common.Address, chainID *big.Int) []byte {
	return crypto.Keccak256(
		[]byte(ActionWithdraw),
		user.Bytes(),
		math.U256Bytes(new(big.Int).Set(amount)),
		math.U256Bytes(new(big.Int).Set(nonce)),
		math.U256Bytes(new(big.Int).Set(deadline)),
		vault.Bytes(),
		math.U256Bytes(new(big.Int).Set(chainID)),
	)
}

// Sign returns an EIP-191 personal signature over digest with v in {27, 28}.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.New("invalid signature length")
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
