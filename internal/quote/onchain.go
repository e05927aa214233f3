package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// revertErrorCode is the JSON-RPC code geth-compatible nodes use for
// "execution reverted".
const revertErrorCode = 3

// Uniswap V3 QuoterV2 ABI, quoteExactInputSingle only.
const quoterV2ABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
			{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const quoteMethod = "quoteExactInputSingle"

// ContractCaller is the read-only subset of ethclient.Client used for eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// OnChainQuoter simulates swaps against the QuoterV2 contract with eth_call.
type OnChainQuoter struct {
	caller ContractCaller
	quoter common.Address
	abi    abi.ABI
}

// NewOnChainQuoter creates a new OnChainQuoter for the QuoterV2 deployment at quoter.
func NewOnChainQuoter(caller ContractCaller, quoter common.Address) (*OnChainQuoter, error) {
	if caller == nil {
		return nil, errors.New("contract caller is required")
	}
	if quoter == (common.Address{}) {
		return nil, errors.New("quoter address is required")
	}
	parsed, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	return &OnChainQuoter{caller: caller, quoter: quoter, abi: parsed}, nil
}

func (q *OnChainQuoter) Name() string {
	return "onchain"
}

// Quote runs quoteExactInputSingle for req and decodes the four return values.
func (q *OnChainQuoter) Quote(ctx context.Context, req Request) (*Result, error) {
	data, err := q.abi.Pack(quoteMethod, quoteExactInputSingleParams{
		TokenIn:           req.TokenIn.Address,
		TokenOut:          req.TokenOut.Address,
		AmountIn:          req.AmountIn,
		Fee:               req.Fee.BigInt(),
		SqrtPriceLimitX96: new(big.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", quoteMethod, err)
	}

	out, err := q.caller.CallContract(ctx, ethereum.CallMsg{To: &q.quoter, Data: data}, nil)
	if err != nil {
		return nil, classifyCallError(err)
	}
	if len(out) == 0 {
		return nil, &RevertError{Reason: "empty return data"}
	}

	values, err := q.abi.Unpack(quoteMethod, out)
	if err != nil || len(values) != 4 {
		return nil, &RevertError{Reason: fmt.Sprintf("malformed return data: %v", err)}
	}

	amountOut, ok1 := values[0].(*big.Int)
	sqrtPriceAfter, ok2 := values[1].(*big.Int)
	ticksCrossed, ok3 := values[2].(uint32)
	gasEstimate, ok4 := values[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, &RevertError{Reason: "unexpected return types"}
	}

	return &Result{
		AmountOut:         amountOut,
		SqrtPriceX96After: sqrtPriceAfter,
		TicksCrossed:      ticksCrossed,
		GasEstimate:       gasEstimate.Uint64(),
	}, nil
}

// classifyCallError sorts an eth_call failure into a revert or a transport
// failure so no caller above this layer inspects error text.
func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransportError{Err: err}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == revertErrorCode || strings.Contains(strings.ToLower(rpcErr.Error()), "revert") {
			return &RevertError{Reason: rpcErr.Error()}
		}
		return &TransportError{Err: err}
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return &RevertError{Reason: dataErr.Error()}
	}

	// Some providers flatten the JSON-RPC error into plain text.
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return &RevertError{Reason: err.Error()}
	}
	return &TransportError{Err: err}
}
