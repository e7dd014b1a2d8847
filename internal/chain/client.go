package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrInvalidTxHash  = errors.New("invalid transaction hash")
	ErrInvalidAddress = errors.New("invalid address")
	ErrTxNotFound     = errors.New("transaction not found")
	ErrTxReverted     = errors.New("transaction reverted")
	ErrEventNotFound  = errors.New("vault event not found in transaction")
	ErrNonceUsed      = errors.New("nonce already used")
)

// Transfer is a vault Deposited or Withdrawn event.
type Transfer struct {
	TxHash      string   `json:"txHash"`
	User        string   `json:"user"`
	Amount      int64    `json:"amount"`
	AmountWei   *big.Int `json:"-"`
	BlockNumber uint64   `json:"blockNumber"`
}

// WithdrawalAuth is what the user submits to vault.withdraw.
type WithdrawalAuth struct {
	AmountWei string `json:"amountWei"`
	Nonce     uint64 `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

type Receipt struct {
	TxHash      string
	Success     bool
	BlockNumber uint64
}

type Addresses struct {
	ChainID        int64  `json:"chainId"`
	Token          string `json:"tokenAddress"`
	Vault          string `json:"vaultAddress"`
	PlatformWallet string `json:"platformWallet"`
	Burn           string `json:"burnAddress"`
	Signer         string `json:"signerAddress"`
	Decimals       int32  `json:"decimals"`
}

type Options struct {
	RPCURL         string
	ChainID        int64
	TokenAddress   string
	VaultAddress   string
	PlatformWallet string
	BurnAddress    string
	Decimals       int32
	AdminKey       string
	Timeout        time.Duration
}

// Client talks to the QT token and the bet mode vault over JSON-RPC.
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	decimals int32
	timeout  time.Duration

	token    common.Address
	vault    common.Address
	burn     common.Address
	platform common.Address

	tokenContract *bind.BoundContract
	vaultContract *bind.BoundContract
	vaultABI      abi.ABI
	signer        *Signer
}

func Dial(ctx context.Context, opts Options) (*Client, error) {
	for _, a := range []string{opts.TokenAddress, opts.VaultAddress, opts.BurnAddress} {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, a)
		}
	}

	signer, err := NewSigner(opts.AdminKey)
	if err != nil {
		return nil, err
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	vABI, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	remoteID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if opts.ChainID != 0 && remoteID.Int64() != opts.ChainID {
		eth.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match configured %d", remoteID, opts.ChainID)
	}

	decimals := opts.Decimals
	if decimals == 0 {
		decimals = DefaultTokenDecimals
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		eth:      eth,
		chainID:  remoteID,
		decimals: decimals,
		timeout:  timeout,
		token:    common.HexToAddress(opts.TokenAddress),
		vault:    common.HexToAddress(opts.VaultAddress),
		burn:     common.HexToAddress(opts.BurnAddress),
		vaultABI: vABI,
		signer:   signer,
	}
	if common.IsHexAddress(opts.PlatformWallet) {
		c.platform = common.HexToAddress(opts.PlatformWallet)
	}
	c.tokenContract = bind.NewBoundContract(c.token, tokenABI, eth, eth, eth)
	c.vaultContract = bind.NewBoundContract(c.vault, vABI, eth, eth, eth)

	logger.Info("chain client ready", "chain_id", remoteID.String(), "vault", c.vault.Hex(), "signer", signer.Address().Hex())
	return c, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) Addresses() Addresses {
	a := Addresses{
		ChainID:  c.chainID.Int64(),
		Token:    c.token.Hex(),
		Vault:    c.vault.Hex(),
		Burn:     c.burn.Hex(),
		Signer:   c.signer.Address().Hex(),
		Decimals: c.decimals,
	}
	if c.platform != (common.Address{}) {
		a.PlatformWallet = c.platform.Hex()
	}
	return a
}

func (c *Client) rpcCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) LatestBlockHash(ctx context.Context) ([]byte, error) {
	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()

	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	return header.Hash().Bytes(), nil
}

func (c *Client) callUint(ctx context.Context, method, wallet string) (*big.Int, error) {
	if !common.IsHexAddress(wallet) {
		return nil, ErrInvalidAddress
	}
	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()

	var out []interface{}
	if err := c.vaultContract.Call(&bind.CallOpts{Context: ctx}, &out, method, common.HexToAddress(wallet)); err != nil {
		return nil, fmt.Errorf("vault.%s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("vault.%s: unexpected output", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("vault.%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

// VaultBalance returns the user's vault balance in whole QT.
func (c *Client) VaultBalance(ctx context.Context, wallet string) (int64, error) {
	wei, err := c.callUint(ctx, "balanceOf", wallet)
	if err != nil {
		return 0, err
	}
	return FromWei(wei, c.decimals)
}

func (c *Client) VaultNonce(ctx context.Context, wallet string) (uint64, error) {
	n, err := c.callUint(ctx, "nonces", wallet)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func (c *Client) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.signer.key, c.chainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	return auth, nil
}

// SyncBalance submits a signed creditBalance or debitBalance and returns the tx hash without
// waiting for it to be mined.
func (c *Client) SyncBalance(ctx context.Context, kind domain.SyncKind, wallet string, amount int64) (string, error) {
	action := ActionCredit
	if kind == domain.SyncDebit {
		action = ActionDebit
	}
	if !common.IsHexAddress(wallet) {
		return "", ErrInvalidAddress
	}
	user := common.HexToAddress(wallet)

	wei, err := ToWei(amount, c.decimals)
	if err != nil {
		return "", err
	}
	nonce, err := c.callUint(ctx, "nonces", wallet)
	if err != nil {
		return "", err
	}

	sig, err := c.signer.Sign(BalanceDigest(action, user, wei, nonce, c.vault, c.chainID))
	if err != nil {
		return "", err
	}

	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()
	auth, err := c.transactor(ctx)
	if err != nil {
		return "", err
	}
	tx, err := c.vaultContract.Transact(auth, action, user, wei, nonce, sig)
	if err != nil {
		return "", fmt.Errorf("vault.%s: %w", action, err)
	}
	return tx.Hash().Hex(), nil
}

// AuthorizeWithdrawal signs a withdrawal the user executes on the vault before deadline.
func (c *Client) AuthorizeWithdrawal(ctx context.Context, wallet string, amount int64, deadline time.Time) (*WithdrawalAuth, error) {
	if !common.IsHexAddress(wallet) {
		return nil, ErrInvalidAddress
	}
	wei, err := ToWei(amount, c.decimals)
	if err != nil {
		return nil, err
	}
	nonce, err := c.callUint(ctx, "nonces", wallet)
	if err != nil {
		return nil, err
	}

	dl := big.NewInt(deadline.Unix())
	sig, err := c.signer.Sign(WithdrawDigest(common.HexToAddress(wallet), wei, nonce, dl, c.vault, c.chainID))
	if err != nil {
		return nil, err
	}
	return &WithdrawalAuth{
		AmountWei: wei.String(),
		Nonce:     nonce.Uint64(),
		Deadline:  dl.Int64(),
		Signature: hexutil.Encode(sig),
	}, nil
}

func (c *Client) FindDeposit(ctx context.Context, txHash string) (*Transfer, error) {
	return c.findVaultEvent(ctx, txHash, "Deposited")
}

func (c *Client) FindWithdrawal(ctx context.Context, txHash string) (*Transfer, error) {
	return c.findVaultEvent(ctx, txHash, "Withdrawn")
}

func (c *Client) findVaultEvent(ctx context.Context, txHash, event string) (*Transfer, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxReverted
	}

	id := c.vaultABI.Events[event].ID
	for _, lg := range receipt.Logs {
		if lg.Address != c.vault || len(lg.Topics) == 0 || lg.Topics[0] != id {
			continue
		}
		var ev struct {
			User   common.Address
			Amount *big.Int
		}
		if err := c.vaultContract.UnpackLog(&ev, event, *lg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		amount, err := FromWei(ev.Amount, c.decimals)
		if err != nil {
			return nil, err
		}
		return &Transfer{
			TxHash:      hash.Hex(),
			User:        strings.ToLower(ev.User.Hex()),
			Amount:      amount,
			AmountWei:   ev.Amount,
			BlockNumber: receipt.BlockNumber.Uint64(),
		}, nil
	}
	return nil, ErrEventNotFound
}

// SignedTx is a signed transaction that has not necessarily been broadcast.
type SignedTx struct {
	Hash string
	Raw  string
}

// SignBurn signs, without sending, a transfer of amount QT from the admin wallet to the
// burn address. Broadcasting the same raw transaction again can never burn twice.
func (c *Client) SignBurn(ctx context.Context, amount int64) (*SignedTx, error) {
	wei, err := ToWei(amount, c.decimals)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()
	auth, err := c.transactor(ctx)
	if err != nil {
		return nil, err
	}
	auth.GasLimit = BurnGasLimit
	auth.NoSend = true

	tx, err := c.tokenContract.Transact(auth, "transfer", c.burn, wei)
	if err != nil {
		return nil, fmt.Errorf("token.transfer: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	logger.Info("burn transfer signed", "tx_hash", tx.Hash().Hex(), "nonce", tx.Nonce(), "amount", FormatQT(wei, c.decimals))
	return &SignedTx{Hash: tx.Hash().Hex(), Raw: hexutil.Encode(raw)}, nil
}

// SendRawTx broadcasts a transaction produced by SignBurn. A transaction the node already
// knows is not an error. ErrNonceUsed means its nonce was taken by a mined transaction.
func (c *Client) SendRawTx(ctx context.Context, raw string) error {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode raw tx: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("decode raw tx: %w", err)
	}

	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()
	err = c.eth.SendTransaction(ctx, tx)
	switch {
	case err == nil:
		logger.Info("transaction broadcast", "tx_hash", tx.Hash().Hex())
		return nil
	case strings.Contains(err.Error(), "already known"):
		return nil
	case strings.Contains(err.Error(), "nonce too low"):
		return fmt.Errorf("%s: %w", tx.Hash().Hex(), ErrNonceUsed)
	}
	return err
}

// Receipt looks the receipt up once. ErrTxNotFound means the transaction is not mined.
func (c *Client) Receipt(ctx context.Context, txHash string) (*Receipt, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.rpcCtx(ctx)
	defer cancel()
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Receipt{
		TxHash:      hash.Hex(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// WaitTx polls for the receipt until it is mined or ctx ends.
func (c *Client) WaitTx(ctx context.Context, txHash string) (*Receipt, error) {
	ticker := time.NewTicker(ReceiptPollInterval)
	defer ticker.Stop()

	for {
		r, err := c.Receipt(ctx, txHash)
		if !errors.Is(err, ErrTxNotFound) {
			return r, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func ParseTxHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, ErrInvalidTxHash
	}
	return common.BytesToHash(b), nil
}
