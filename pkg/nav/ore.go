package nav

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// oreSearchRadius bounds the block scan when locating ore.
const oreSearchRadius = 32.0

// oreAliases maps friendly ore names to the block ids that count as that
// ore. Deepslate variants are included where they exist.
var oreAliases = map[string][]string{
	"coal":     {"coal_ore", "deepslate_coal_ore"},
	"copper":   {"copper_ore", "deepslate_copper_ore"},
	"iron":     {"iron_ore", "deepslate_iron_ore"},
	"gold":     {"gold_ore", "deepslate_gold_ore", "nether_gold_ore"},
	"redstone": {"redstone_ore", "deepslate_redstone_ore"},
	"lapis":    {"lapis_ore", "deepslate_lapis_ore"},
	"diamond":  {"diamond_ore", "deepslate_diamond_ore"},
	"emerald":  {"emerald_ore", "deepslate_emerald_ore"},
	"quartz":   {"nether_quartz_ore"},
}

// MineResult reports a completed mining operation.
type MineResult struct {
	Ore      string    `json:"ore"`
	Block    string    `json:"block"`
	Position game.Vec3 `json:"position"`
}

// resolveOre maps a requested ore name to block ids. Unknown names produce
// an error listing any partial alias matches.
func resolveOre(name string) ([]string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ore name is required")
	}
	if blocks, ok := oreAliases[key]; ok {
		return blocks, nil
	}
	// Exact block ids pass through ("deepslate_iron_ore" etc).
	for _, blocks := range oreAliases {
		for _, id := range blocks {
			if id == key {
				return []string{id}, nil
			}
		}
	}

	var partial []string
	for alias := range oreAliases {
		if strings.Contains(alias, key) || strings.Contains(key, alias) {
			partial = append(partial, alias)
		}
	}
	sort.Strings(partial)
	if len(partial) > 0 {
		return nil, fmt.Errorf("Unknown ore type %q; closest matches: %s",
			name, strings.Join(partial, ", "))
	}
	known := make([]string, 0, len(oreAliases))
	for alias := range oreAliases {
		known = append(known, alias)
	}
	sort.Strings(known)
	return nil, fmt.Errorf("Unknown ore type %q; known ores: %s",
		name, strings.Join(known, ", "))
}

// MineOre locates the nearest matching ore block, walks to it, and digs it.
// Requires the dig-permissive profile and a game mode that permits digging.
func (n *Controller) MineOre(ctx context.Context, name string) (*MineResult, error) {
	blocks, err := resolveOre(name)
	if err != nil {
		return nil, err
	}
	c := n.src.ActiveClient()
	if c == nil {
		return nil, ErrNotConnected
	}

	if mode := c.GameMode(); mode == "adventure" || mode == "spectator" {
		return nil, fmt.Errorf("digging is not permitted in %s mode", mode)
	}
	digging, ok := n.DigPermissive()
	if !ok || !digging.CanDig {
		return nil, fmt.Errorf("digging profile is not initialised yet")
	}

	found := c.FindBlocks(blocks, oreSearchRadius, 1)
	if len(found) == 0 {
		return nil, fmt.Errorf("no %s found within %.0f blocks", name, oreSearchRadius)
	}
	target := found[0]

	if err := n.MoveTo(ctx, target.X, target.Y, target.Z); err != nil {
		return nil, fmt.Errorf("could not reach the ore: %w", err)
	}

	block := c.BlockAt(target)
	if block == nil {
		return nil, fmt.Errorf("ore at %v is no longer loaded", target)
	}
	if err := c.Dig(ctx, target); err != nil {
		return nil, fmt.Errorf("digging failed: %w", err)
	}

	return &MineResult{Ore: name, Block: block.Name, Position: target}, nil
}
