package chain

import "time"

const (
	// BaseMainnetChainID is the default chain (Base)
	BaseMainnetChainID = 8453

	// DefaultTokenDecimals of the QT ERC-20
	DefaultTokenDecimals = 18

	// ReceiptPollInterval is how often WaitTx polls for a receipt
	ReceiptPollInterval = 2 * time.Second

	// BurnGasLimit caps the gas of the weekly burn transfer
	BurnGasLimit = 120_000
)

// Signed vault actions. The action string is the first field of the signed message.
const (
	ActionCredit   = "creditBalance"
	ActionDebit    = "debitBalance"
	ActionWithdraw = "withdraw"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

const vaultABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonces","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"creditBalance","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"signature","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"debitBalance","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"signature","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"signature","type":"bytes"}],
	 "outputs":[]},
	{"type":"event","name":"Deposited","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"Withdrawn","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`
