package domain

// Token describes a configured ERC-20 token.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// ChainMeta is the immutable chain-deployment description selected once at
// startup and injected into every component that talks to the network.
type ChainMeta struct {
	ChainID     int64            `json:"chain_id"`
	RPCURL      string           `json:"rpc_url"`
	Router      string           `json:"router"`
	PoolManager string           `json:"pool_manager"`
	LendingPool string           `json:"lending_pool"`
	Tokens      map[string]Token `json:"tokens"`
}

// TokenBySymbol looks up a configured token, reporting whether it exists.
func (m ChainMeta) TokenBySymbol(symbol string) (Token, bool) {
	t, ok := m.Tokens[symbol]
	return t, ok
}
