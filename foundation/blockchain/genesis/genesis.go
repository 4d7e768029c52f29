// Package genesis maintains access to the genesis parameters shared by every
// node in the network.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
)

// Genesis represents the genesis file.
type Genesis struct {
	TimeStamp    string  `json:"timestamp"`     // Timestamp recorded in the genesis block so all nodes agree on its hash.
	Proof        int64   `json:"proof"`         // Proof recorded in the genesis block.
	Difficulty   uint    `json:"difficulty"`    // Number of leading zeros needed to solve the work problem.
	MiningReward float64 `json:"mining_reward"` // Amount paid to a named beneficiary for mining a block.
}

// Default returns the genesis parameters used when no file is provided.
func Default() Genesis {
	return Genesis{
		TimeStamp:    "2024-01-01 00:00:00.000000",
		Proof:        1,
		Difficulty:   4,
		MiningReward: 16,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields missing from the file keep
// their default values.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis file: %w", err)
	}

	if genesis.Difficulty == 0 {
		return Genesis{}, fmt.Errorf("genesis difficulty must be greater than zero")
	}

	return genesis, nil
}
