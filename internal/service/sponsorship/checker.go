package sponsorship

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/config"
)

// Decision is the outcome of a sponsorship eligibility probe.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// RPCCaller is the slice of the JSON-RPC client the checker needs.
// *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

type chainCapabilities struct {
	PaymasterService struct {
		Supported bool `json:"supported"`
	} `json:"paymasterService"`
}

// Checker probes wallet capabilities and the paymaster for gas sponsorship.
// A sequence counter lets callers discard decisions that were superseded by
// a newer check while the RPC round-trips were in flight.
type Checker struct {
	client  RPCCaller
	chainID int64
	seq     atomic.Uint64
}

func NewChecker(cfg config.PaymasterConfig) (*Checker, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("sponsorship: rpc url is not configured")
	}
	client, err := rpc.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("sponsorship: dial rpc: %w", err)
	}
	return NewCheckerWithClient(client, cfg.ChainID), nil
}

func NewCheckerWithClient(client RPCCaller, chainID int64) *Checker {
	return &Checker{client: client, chainID: chainID}
}

// Begin starts a new check generation and returns its sequence number.
func (c *Checker) Begin() uint64 {
	return c.seq.Add(1)
}

// Fresh reports whether seq is still the latest generation.
func (c *Checker) Fresh(seq uint64) bool {
	return c.seq.Load() == seq
}

// Check runs the eligibility probes for the given generation. The second
// return is false when a newer generation superseded this one while the
// probes were in flight; such decisions must be discarded.
func (c *Checker) Check(ctx context.Context, seq uint64, sender, target common.Address, value *big.Int, callData []byte) (Decision, bool) {
	decision := c.decide(ctx, sender, target, value, callData)
	if !c.Fresh(seq) {
		zap.L().Debug("discarding superseded sponsorship decision",
			zap.Uint64("seq", seq))
		return Decision{}, false
	}
	return decision, true
}

// CheckLatest runs a single-shot check as its own generation.
func (c *Checker) CheckLatest(ctx context.Context, sender, target common.Address, value *big.Int, callData []byte) Decision {
	seq := c.Begin()
	decision, fresh := c.Check(ctx, seq, sender, target, value, callData)
	if !fresh {
		return Decision{Eligible: false, Reason: "superseded by a newer sponsorship check"}
	}
	return decision
}

func (c *Checker) decide(ctx context.Context, sender, target common.Address, value *big.Int, callData []byte) Decision {
	var capabilities map[string]chainCapabilities
	if err := c.client.CallContext(ctx, &capabilities, "wallet_getCapabilities", sender); err != nil {
		return Decision{Eligible: false, Reason: "wallet capability probe failed: " + err.Error()}
	}

	chain, ok := c.lookupChain(capabilities)
	if !ok || !chain.PaymasterService.Supported {
		return Decision{Eligible: false, Reason: "paymaster service not supported by this wallet"}
	}

	if value == nil {
		value = big.NewInt(0)
	}
	call := map[string]any{
		"sender": sender.Hex(),
		"to":     target.Hex(),
		"value":  hexutil.EncodeBig(value),
		"data":   hexutil.Encode(callData),
	}

	var stub map[string]any
	err := c.client.CallContext(ctx, &stub, "pm_getPaymasterStubData", call, hexutil.EncodeBig(big.NewInt(c.chainID)))
	if err != nil {
		return Decision{Eligible: false, Reason: "paymaster declined sponsorship: " + err.Error()}
	}
	if stub == nil {
		return Decision{Eligible: false, Reason: "paymaster declined sponsorship: empty stub response"}
	}

	return Decision{Eligible: true, Reason: "transaction will be sponsored by paymaster"}
}

// lookupChain tolerates the key formats wallets actually emit: decimal,
// 0x-hex, and case variants of each.
func (c *Checker) lookupChain(capabilities map[string]chainCapabilities) (chainCapabilities, bool) {
	candidates := []string{
		fmt.Sprintf("%d", c.chainID),
		hexutil.EncodeBig(big.NewInt(c.chainID)),
	}
	for _, key := range candidates {
		if chain, ok := capabilities[key]; ok {
			return chain, true
		}
		if chain, ok := capabilities[strings.ToLower(key)]; ok {
			return chain, true
		}
		if chain, ok := capabilities[strings.ToUpper(key)]; ok {
			return chain, true
		}
	}
	return chainCapabilities{}, false
}

const usdcDecimals = 6

var erc20TransferABI = mustTransferABI()

func mustTransferABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(`[{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`))
	if err != nil {
		panic(err)
	}
	return parsed
}

// TransferCallData packs an ERC-20 transfer of a USDC amount, rejecting
// amounts finer than the token's 6 decimals.
func TransferCallData(recipient common.Address, amount decimal.Decimal) ([]byte, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("sponsorship: transfer amount must be positive")
	}
	units := amount.Shift(usdcDecimals)
	if !units.IsInteger() {
		return nil, fmt.Errorf("sponsorship: amount %s has more than %d decimal places", amount, usdcDecimals)
	}
	return erc20TransferABI.Pack("transfer", recipient, units.BigInt())
}
