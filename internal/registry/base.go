package registry

import (
	"baseroute/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// BaseChainID is the chain id of Base L2 mainnet.
const BaseChainID = 8453

// Official Base L2 token addresses.
var baseTokens = []model.Token{
	{Symbol: "ETH", Name: "Ether", Address: common.Address{}, Decimals: 18, Native: true},
	{Symbol: "WETH", Name: "Wrapped Ether", Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
	{Symbol: "USDC", Name: "USD Coin", Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6},
	{Symbol: "USDbC", Name: "USD Base Coin (Bridged)", Address: common.HexToAddress("0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA"), Decimals: 6},
	{Symbol: "DAI", Name: "Dai Stablecoin", Address: common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"), Decimals: 18},
	{Symbol: "cbETH", Name: "Coinbase Wrapped Staked ETH", Address: common.HexToAddress("0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22"), Decimals: 18},
	{Symbol: "LINK", Name: "Chainlink", Address: common.HexToAddress("0x88Fb150BDc53A65fe94Dea0c9BA0a6dAf8C6e196"), Decimals: 18},
	{Symbol: "AAVE", Name: "Aave", Address: common.HexToAddress("0x63706e401c06ac8513145b7687a14804d17f814b"), Decimals: 18},
}

var basePairs = []PairSpec{
	{ID: "usdc-weth", From: "USDC", To: "WETH"},
	{ID: "usdc-eth", From: "USDC", To: "ETH"},
	{ID: "usdc-cbeth", From: "USDC", To: "cbETH"},
	{ID: "dai-weth", From: "DAI", To: "WETH"},
	{ID: "usdbc-weth", From: "USDbC", To: "WETH"},
	{ID: "weth-usdc", From: "WETH", To: "USDC"},
	{ID: "eth-usdc", From: "ETH", To: "USDC"},
	{ID: "usdc-link", From: "USDC", To: "LINK"},
	{ID: "usdc-aave", From: "USDC", To: "AAVE"},
	{ID: "weth-link", From: "WETH", To: "LINK"},
	{ID: "weth-aave", From: "WETH", To: "AAVE"},
}

// NewBase returns the Base L2 registry.
func NewBase() *Registry {
	r, err := New(BaseChainID, baseTokens, basePairs, "WETH")
	if err != nil {
		panic("registry: invalid Base L2 table: " + err.Error())
	}
	return r
}
