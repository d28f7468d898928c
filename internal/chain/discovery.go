package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// transferTopic is the ERC-721 Transfer(address,address,uint256) signature.
// Positions are NFTs minted by the pool manager, so mint logs to the owner
// recover the ids this deployment never exposes through a view function.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// DiscoverPositionIDs scans pool manager Transfer logs for position NFTs
// minted to owner. This is best effort: RPC providers cap log ranges, and a
// failure here only means the caller falls back to cached ids.
func (c *Client) DiscoverPositionIDs(ctx context.Context, owner common.Address) ([]uint64, error) {
	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.poolManager},
		Topics: [][]common.Hash{
			{transferTopic},
			{common.Hash{}}, // from == zero address, mints only
			{common.BytesToHash(owner.Bytes())},
		},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool, len(logs))
	ids := make([]uint64, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) != 4 {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[3].Bytes()).Uint64()
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
