package registry

import "github.com/ggonzalez94/bridgectl/internal/model"

// Info is the wire form of a chain.
func (c ChainDescriptor) Info() model.ChainInfo {
	return model.ChainInfo{
		ID:          string(c.ID),
		Name:        c.Name,
		NetworkID:   c.NetworkID,
		CAIP2:       c.CAIP2(),
		RPCURL:      c.RPCURL,
		ExplorerURL: c.ExplorerURL,
		Testnet:     c.Testnet,
		Destination: c.ID == DestinationChain,
	}
}

// Info is the wire form of the token as deployed on chain.
func (t TokenDescriptor) Info(chain ChainID) model.TokenInfo {
	addr, _ := t.AddressOn(chain)
	return model.TokenInfo{
		Symbol:   t.Symbol,
		Name:     t.Name,
		ChainID:  string(chain),
		Address:  addr,
		Decimals: t.Decimals,
		Native:   t.IsNativeOn(chain),
		MinUnit:  t.MinUnit(),
	}
}

// DefaultRPCURL returns the registry endpoint of a chain.
func DefaultRPCURL(id ChainID) (string, error) {
	return ResolveRPCURL("", id)
}
