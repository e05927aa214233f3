package quote

import (
	"fmt"
	"net/http"

	"baseroute/internal/config"

	"github.com/ethereum/go-ethereum/common"
)

// NewProvider creates the quote provider named in the configuration.
// caller is only used by the onchain provider and may be nil otherwise.
func NewProvider(cfg *config.Config, caller ContractCaller, httpClient *http.Client) (Provider, error) {
	switch cfg.Quote.Provider {
	case config.ProviderOnChain:
		if !common.IsHexAddress(cfg.Network.QuoterAddress) {
			return nil, fmt.Errorf("invalid quoter address: %s", cfg.Network.QuoterAddress)
		}
		return NewOnChainQuoter(caller, common.HexToAddress(cfg.Network.QuoterAddress))
	case config.ProviderAggregator:
		return NewLiveAggregator(httpClient, cfg.Quote.AggregatorURL, cfg.Quote.AggregatorAPIKey, cfg.Network.ChainID)
	case config.ProviderSimulated:
		return NewSimulatedFallback(cfg.Quote.SimulatedPricesUSD)
	default:
		return nil, fmt.Errorf("unknown quote provider: %s", cfg.Quote.Provider)
	}
}
