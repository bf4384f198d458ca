package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/middleware-bindings/FiatToken"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/util"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	LedgerTokenName    = "USDC"
	LedgerTokenVersion = "2"
	LedgerDecimals     = 6

	ledgerGasUsed = uint64(52_000)
)

var (
	ledgerBaseFee = big.NewInt(1_000_000_000)
	ledgerTipCap  = big.NewInt(100_000_000)
)

// LedgerRevertError mimics the JSON-RPC error a node returns for a reverted call.
type LedgerRevertError struct {
	Reason string
}

func (e *LedgerRevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *LedgerRevertError) ErrorCode() int {
	return 3
}

// ErrorData returns the ABI encoded Error(string) payload as hex.
func (e *LedgerRevertError) ErrorData() interface{} {
	payload, _ := util.EncodeRevertReason(e.Reason)
	return hexutil.Encode(payload)
}

// FakeLedger is an in-memory chain hosting a single permit-capable FiatToken.
// It satisfies bind.ContractBackend and bind.DeployBackend, enforces permit
// signatures with ecrecover and tracks balances and allowances.
type FakeLedger struct {
	mu sync.Mutex

	chainID  *big.Int
	token    common.Address
	minter   common.Address
	tokenABI *abi.ABI
	builder  *typedData.TypedDataBuilder
	now      func() time.Time

	balances      map[common.Address]*big.Int
	allowances    map[common.Address]map[common.Address]*big.Int
	permitNonces  map[common.Address]*big.Int
	accountNonces map[common.Address]uint64

	blockNumber uint64
	receipts    map[common.Hash]*types.Receipt
	sent        []*types.Transaction
	methods     []string

	failNext         string
	revertedAtBlock  map[uint64]string
	withholdReceipts bool
}

// NewFakeLedger deploys a token at tokenAddress whose only minter is minter.
func NewFakeLedger(chainID *big.Int, tokenAddress common.Address, minter common.Address) (*FakeLedger, error) {
	parsed, err := FiatToken.FiatTokenMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              LedgerTokenName,
		Version:           LedgerTokenVersion,
		ChainId:           chainID,
		VerifyingContract: tokenAddress,
	})
	if err != nil {
		return nil, err
	}
	return &FakeLedger{
		chainID:         new(big.Int).Set(chainID),
		token:           tokenAddress,
		minter:          minter,
		tokenABI:        parsed,
		builder:         builder,
		now:             time.Now,
		balances:        make(map[common.Address]*big.Int),
		allowances:      make(map[common.Address]map[common.Address]*big.Int),
		permitNonces:    make(map[common.Address]*big.Int),
		accountNonces:   make(map[common.Address]uint64),
		receipts:        make(map[common.Hash]*types.Receipt),
		revertedAtBlock: make(map[uint64]string),
	}, nil
}

// SetBalance credits account with exactly amount base units.
func (l *FakeLedger) SetBalance(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = new(big.Int).Set(amount)
}

func (l *FakeLedger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(account))
}

func (l *FakeLedger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowanceLocked(owner, spender))
}

func (l *FakeLedger) PermitNonce(owner common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.permitNonceLocked(owner))
}

// SentMethods lists the token method of every transaction accepted so far, in order.
func (l *FakeLedger) SentMethods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.methods...)
}

func (l *FakeLedger) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

// FailNextTransaction makes the next accepted transaction revert with reason
// once mined. Gas estimation still succeeds.
func (l *FakeLedger) FailNextTransaction(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = reason
}

// WithholdReceipts keeps accepted transactions pending forever.
func (l *FakeLedger) WithholdReceipts(withhold bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.withholdReceipts = withhold
}

func (l *FakeLedger) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *FakeLedger) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.chainID), nil
}

func (l *FakeLedger) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if account == l.token {
		return []byte{0x60, 0x80, 0x60, 0x40}, nil
	}
	return nil, nil
}

func (l *FakeLedger) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return l.CodeAt(ctx, account, nil)
}

func (l *FakeLedger) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &types.Header{
		Number:  new(big.Int).SetUint64(l.blockNumber),
		Time:    uint64(l.now().Unix()),
		BaseFee: new(big.Int).Set(ledgerBaseFee),
	}, nil
}

func (l *FakeLedger) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accountNonces[account], nil
}

func (l *FakeLedger) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Add(ledgerBaseFee, ledgerTipCap), nil
}

func (l *FakeLedger) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(ledgerTipCap), nil
}

func (l *FakeLedger) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if blockNumber != nil && blockNumber.IsUint64() {
		if reason, ok := l.revertedAtBlock[blockNumber.Uint64()]; ok {
			return nil, &LedgerRevertError{Reason: reason}
		}
	}
	if call.To == nil || *call.To != l.token {
		return nil, nil
	}
	return l.execute(call.From, call.Data, false)
}

func (l *FakeLedger) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if call.To == nil || *call.To != l.token {
		return 21_000, nil
	}
	if _, err := l.execute(call.From, call.Data, false); err != nil {
		return 0, err
	}
	return ledgerGasUsed, nil
}

func (l *FakeLedger) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from, err := types.Sender(types.LatestSignerForChainID(l.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.ChainId().Cmp(l.chainID) != 0 {
		return fmt.Errorf("invalid chain id %s", tx.ChainId())
	}
	if expected := l.accountNonces[from]; tx.Nonce() != expected {
		if tx.Nonce() < expected {
			return errors.New("nonce too low")
		}
		return errors.New("nonce too high")
	}
	if tx.To() == nil || *tx.To() != l.token {
		return errors.New("only token calls are supported")
	}

	l.accountNonces[from]++
	l.blockNumber++
	l.sent = append(l.sent, tx)
	if method, err := l.tokenABI.MethodById(tx.Data()); err == nil {
		l.methods = append(l.methods, method.Name)
	}

	status := types.ReceiptStatusSuccessful
	if l.failNext != "" {
		l.revertedAtBlock[l.blockNumber] = l.failNext
		l.failNext = ""
		status = types.ReceiptStatusFailed
	} else if _, err := l.execute(from, tx.Data(), true); err != nil {
		var revert *LedgerRevertError
		if !errors.As(err, &revert) {
			return err
		}
		l.revertedAtBlock[l.blockNumber] = revert.Reason
		status = types.ReceiptStatusFailed
	}

	if l.withholdReceipts {
		return nil
	}
	l.receipts[tx.Hash()] = &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		TxHash:            tx.Hash(),
		GasUsed:           ledgerGasUsed,
		CumulativeGasUsed: ledgerGasUsed,
		EffectiveGasPrice: new(big.Int).Add(ledgerBaseFee, ledgerTipCap),
		BlockNumber:       new(big.Int).SetUint64(l.blockNumber),
		BlockHash:         common.BigToHash(new(big.Int).SetUint64(l.blockNumber)),
	}
	return nil
}

func (l *FakeLedger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (l *FakeLedger) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (l *FakeLedger) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("log subscriptions are not supported")
}

func (l *FakeLedger) balanceLocked(account common.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (l *FakeLedger) allowanceLocked(owner, spender common.Address) *big.Int {
	if a, ok := l.allowances[owner][spender]; ok {
		return a
	}
	return new(big.Int)
}

func (l *FakeLedger) permitNonceLocked(owner common.Address) *big.Int {
	if n, ok := l.permitNonces[owner]; ok {
		return n
	}
	return new(big.Int)
}

func revert(reason string) error {
	return &LedgerRevertError{Reason: reason}
}

// execute runs a token call from sender. State is only changed when commit is set.
func (l *FakeLedger) execute(sender common.Address, data []byte, commit bool) ([]byte, error) {
	if len(data) < 4 {
		return nil, revert("unknown function")
	}
	method, err := l.tokenABI.MethodById(data[:4])
	if err != nil {
		return nil, revert("unknown function")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revert("malformed calldata")
	}

	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(l.balanceLocked(args[0].(common.Address)))
	case "allowance":
		return method.Outputs.Pack(l.allowanceLocked(args[0].(common.Address), args[1].(common.Address)))
	case "nonces":
		return method.Outputs.Pack(l.permitNonceLocked(args[0].(common.Address)))
	case "decimals":
		return method.Outputs.Pack(uint8(LedgerDecimals))
	case "name":
		return method.Outputs.Pack(LedgerTokenName)
	case "version":
		return method.Outputs.Pack(LedgerTokenVersion)
	case "DOMAIN_SEPARATOR":
		separator, err := l.builder.DomainSeparator()
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack([32]byte(separator))
	case "mint":
		return l.mint(method, sender, args[0].(common.Address), args[1].(*big.Int), commit)
	case "burn":
		return l.burn(method, sender, args[0].(*big.Int), commit)
	case "transferFrom":
		return l.transferFrom(method, sender, args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int), commit)
	case "permit":
		return l.permit(method, args, commit)
	}
	return nil, revert("unsupported function " + method.Name)
}

func (l *FakeLedger) mint(method *abi.Method, sender, to common.Address, value *big.Int, commit bool) ([]byte, error) {
	if sender != l.minter {
		return nil, revert("FiatToken: caller is not a minter")
	}
	if to == (common.Address{}) {
		return nil, revert("FiatToken: mint to the zero address")
	}
	if value.Sign() <= 0 {
		return nil, revert("FiatToken: mint amount not greater than 0")
	}
	if commit {
		l.balances[to] = new(big.Int).Add(l.balanceLocked(to), value)
	}
	return method.Outputs.Pack(true)
}

func (l *FakeLedger) burn(method *abi.Method, sender common.Address, value *big.Int, commit bool) ([]byte, error) {
	if sender != l.minter {
		return nil, revert("FiatToken: caller is not a minter")
	}
	if value.Sign() <= 0 {
		return nil, revert("FiatToken: burn amount not greater than 0")
	}
	balance := l.balanceLocked(sender)
	if balance.Cmp(value) < 0 {
		return nil, revert("FiatToken: burn amount exceeds balance")
	}
	if commit {
		l.balances[sender] = new(big.Int).Sub(balance, value)
	}
	return method.Outputs.Pack()
}

func (l *FakeLedger) transferFrom(method *abi.Method, spender, from, to common.Address, value *big.Int, commit bool) ([]byte, error) {
	allowance := l.allowanceLocked(from, spender)
	if allowance.Cmp(value) < 0 {
		return nil, revert("ERC20: transfer amount exceeds allowance")
	}
	balance := l.balanceLocked(from)
	if balance.Cmp(value) < 0 {
		return nil, revert("ERC20: transfer amount exceeds balance")
	}
	if to == (common.Address{}) {
		return nil, revert("ERC20: transfer to the zero address")
	}
	if commit {
		l.balances[from] = new(big.Int).Sub(balance, value)
		l.balances[to] = new(big.Int).Add(l.balanceLocked(to), value)
		l.setAllowance(from, spender, new(big.Int).Sub(allowance, value))
	}
	return method.Outputs.Pack(true)
}

func (l *FakeLedger) permit(method *abi.Method, args []interface{}, commit bool) ([]byte, error) {
	owner := args[0].(common.Address)
	spender := args[1].(common.Address)
	value := args[2].(*big.Int)
	deadline := args[3].(*big.Int)
	v := args[4].(uint8)
	r := args[5].([32]byte)
	s := args[6].([32]byte)

	if deadline.Cmp(big.NewInt(l.now().Unix())) < 0 {
		return nil, revert("FiatTokenV2: permit is expired")
	}

	nonce := l.permitNonceLocked(owner)
	digest, err := l.builder.PermitDigest(&typedData.PermitPayload{
		Owner:    owner,
		Spender:  spender,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	})
	if err != nil {
		return nil, revert("EIP2612: invalid signature")
	}

	if v < 27 || !crypto.ValidateSignatureValues(v-27, new(big.Int).SetBytes(r[:]), new(big.Int).SetBytes(s[:]), true) {
		return nil, revert("ECRecover: invalid signature")
	}
	sig := make([]byte, 65)
	copy(sig[:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v - 27
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil || crypto.PubkeyToAddress(*pub) != owner {
		return nil, revert("EIP2612: invalid signature")
	}

	if commit {
		l.setAllowance(owner, spender, new(big.Int).Set(value))
		l.permitNonces[owner] = new(big.Int).Add(nonce, big.NewInt(1))
	}
	return method.Outputs.Pack()
}

func (l *FakeLedger) setAllowance(owner, spender common.Address, value *big.Int) {
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = value
}
