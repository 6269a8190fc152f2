package perception

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/game"
)

// lowLightThreshold is the block-light level below which a lighting warning
// is raised (hostile mobs spawn in the dark).
const lowLightThreshold = 7

// BlockPos is a floored world coordinate.
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Weather summarises the current weather.
type Weather struct {
	IsRaining    bool    `json:"isRaining"`
	RainLevel    float64 `json:"rainLevel"`
	ThunderLevel float64 `json:"thunderLevel"`
	Label        string  `json:"label"` // clear | rain | thunder
}

// TimeInfo is the in-game clock with a day/night flag.
type TimeInfo struct {
	Age       int64 `json:"age"`
	Day       int64 `json:"day"`
	TimeOfDay int64 `json:"timeOfDay"`
	IsDay     bool  `json:"isDay"`
}

// Lighting is the light sample at the agent's position.
type Lighting struct {
	Sky   int `json:"sky"`
	Block int `json:"block"`
}

// EntityDetail describes one nearby entity.
type EntityDetail struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"` // player | hostile | passive | other
	Distance float64  `json:"distance"`
	Bearing  string   `json:"bearing"`
	Position BlockPos `json:"position"`
}

// EntitySummary counts nearby entities and details the closest few.
type EntitySummary struct {
	Total   int            `json:"total"`
	Hostile int            `json:"hostile"`
	Players int            `json:"players"`
	Details []EntityDetail `json:"details"`
}

// HazardSummary counts dangerous blocks around the agent.
type HazardSummary struct {
	Liquids       int        `json:"liquids"`
	Lava          int        `json:"lava"`
	Magma         int        `json:"magma"`
	Voids         int        `json:"voids"`
	ClosestLiquid *HazardRef `json:"closestLiquid,omitempty"`
	ClosestVoid   *HazardRef `json:"closestVoid,omitempty"`
}

// HazardRef locates the nearest block of a hazard class. Distance is
// Euclidean from the agent, rounded to one decimal like entity distances.
type HazardRef struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Z        int     `json:"z"`
	Distance float64 `json:"distance"`
}

// Snapshot is one observation of the world around the agent.
type Snapshot struct {
	Position  BlockPos      `json:"position"`
	Dimension string        `json:"dimension"`
	Health    float64       `json:"health"`
	Food      float64       `json:"food"`
	Weather   Weather       `json:"weather"`
	Time      TimeInfo      `json:"time"`
	Lighting  *Lighting     `json:"lighting,omitempty"`
	Entities  EntitySummary `json:"entities"`
	Hazards   HazardSummary `json:"hazards"`
	Warnings  []string      `json:"warnings"`
	Summary   string        `json:"summary"`
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Lighting != nil {
		lighting := *s.Lighting
		out.Lighting = &lighting
	}
	out.Entities.Details = append([]EntityDetail(nil), s.Entities.Details...)
	out.Warnings = append([]string(nil), s.Warnings...)
	if s.Hazards.ClosestLiquid != nil {
		p := *s.Hazards.ClosestLiquid
		out.Hazards.ClosestLiquid = &p
	}
	if s.Hazards.ClosestVoid != nil {
		p := *s.Hazards.ClosestVoid
		out.Hazards.ClosestVoid = &p
	}
	return &out
}

// bearingLabels follow the yaw convention: yaw 0 faces south, increasing
// towards west. atan2(-dx, dz) yields that yaw for a target offset.
var bearingLabels = [8]string{"S", "SW", "W", "NW", "N", "NE", "E", "SE"}

// bearing buckets the direction to (dx, dz) into one of 8 compass labels.
func bearing(dx, dz float64) string {
	deg := math.Atan2(-dx, dz) * 180 / math.Pi
	for deg < 0 {
		deg += 360
	}
	idx := int(math.Round(deg/45)) % 8
	return bearingLabels[idx]
}

var hostileNames = map[string]bool{
	"zombie": true, "skeleton": true, "creeper": true, "spider": true,
	"cave_spider": true, "enderman": true, "witch": true, "slime": true,
	"drowned": true, "husk": true, "stray": true, "phantom": true,
	"pillager": true, "vindicator": true, "blaze": true, "ghast": true,
	"piglin": true, "zombified_piglin": true, "warden": true,
}

// classifyEntity buckets a world entity into player/hostile/passive/other.
func classifyEntity(e game.WorldEntity) string {
	t := strings.ToLower(e.Type)
	kind := strings.ToLower(e.Kind)
	name := strings.ToLower(e.Name)
	switch {
	case t == "player":
		return "player"
	case strings.Contains(kind, "hostile") || hostileNames[name]:
		return "hostile"
	case strings.Contains(kind, "passive") || strings.Contains(kind, "animal"):
		return "passive"
	default:
		return "other"
	}
}

func weatherLabel(w game.WeatherState) string {
	switch {
	case w.ThunderLevel > 0:
		return "thunder"
	case w.Raining || w.RainLevel > 0:
		return "rain"
	default:
		return "clear"
	}
}

// buildSnapshot constructs the full perception snapshot for a spawned
// client. Returns nil when the entity is not materialised.
func (s *Sampler) buildSnapshot(c game.Client) *Snapshot {
	entity := c.Entity()
	if entity == nil {
		return nil
	}
	x, y, z := entity.Position.Floored()
	pos := BlockPos{X: x, Y: y, Z: z}
	vitals := c.Vitals()

	weather := c.Weather()
	gameTime := c.Time()
	snap := &Snapshot{
		Position:  pos,
		Dimension: c.Dimension(),
		Health:    math.Round(vitals.Health),
		Food:      math.Round(vitals.Food),
		Weather: Weather{
			IsRaining:    weather.Raining,
			RainLevel:    weather.RainLevel,
			ThunderLevel: weather.ThunderLevel,
			Label:        weatherLabel(weather),
		},
		Time: TimeInfo{
			Age:       gameTime.Age,
			Day:       gameTime.Day,
			TimeOfDay: gameTime.TimeOfDay,
			IsDay:     gameTime.TimeOfDay >= 0 && gameTime.TimeOfDay < 12000,
		},
	}

	if sky, block, ok := c.LightAt(entity.Position); ok {
		snap.Lighting = &Lighting{Sky: sky, Block: block}
	}

	snap.Entities = s.scanEntities(c, entity.Position)
	snap.Hazards = s.scanHazards(c, pos)
	snap.Warnings = s.composeWarnings(snap)
	snap.Summary = composeSummary(snap)
	return snap
}

// scanEntities enumerates world entities within the configured radius,
// classifies them, and keeps the closest five as details. Counts cover the
// whole in-radius set, not just the detailed ones.
func (s *Sampler) scanEntities(c game.Client, self game.Vec3) EntitySummary {
	radius := float64(s.cfg.EntityRadius)
	var summary EntitySummary
	var kept []EntityDetail

	for _, e := range c.Entities() {
		dx := e.Position.X - self.X
		dy := e.Position.Y - self.Y
		dz := e.Position.Z - self.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist > radius {
			continue
		}
		kind := classifyEntity(e)
		summary.Total++
		switch kind {
		case "hostile":
			summary.Hostile++
		case "player":
			summary.Players++
		}
		ex, ey, ez := e.Position.Floored()
		kept = append(kept, EntityDetail{
			Name:     e.Name,
			Kind:     kind,
			Distance: math.Round(dist*10) / 10,
			Bearing:  bearing(dx, dz),
			Position: BlockPos{X: ex, Y: ey, Z: ez},
		})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Distance < kept[j].Distance })
	if len(kept) > 5 {
		kept = kept[:5]
	}
	summary.Details = kept
	return summary
}

// scanHazards walks a box around the agent looking for liquids, magma and
// drops into emptiness.
func (s *Sampler) scanHazards(c game.Client, center BlockPos) HazardSummary {
	var hazards HazardSummary
	var closestLiquidDist, closestVoidDist float64

	r := s.cfg.BlockRadius
	h := s.cfg.BlockHeight
	for dx := -r; dx <= r; dx++ {
		for dy := -h; dy <= h; dy++ {
			for dz := -r; dz <= r; dz++ {
				pos := BlockPos{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}
				vec := game.Vec3{X: float64(pos.X), Y: float64(pos.Y), Z: float64(pos.Z)}
				block := c.BlockAt(vec)
				dist := math.Sqrt(float64(dx*dx + dy*dy + dz*dz))

				if block != nil {
					name := strings.ToLower(block.Name)
					if block.Liquid || strings.Contains(name, "water") || strings.Contains(name, "lava") {
						hazards.Liquids++
						if strings.Contains(name, "lava") {
							hazards.Lava++
						}
						if hazards.ClosestLiquid == nil || dist < closestLiquidDist {
							hazards.ClosestLiquid = hazardRef(pos, dist)
							closestLiquidDist = dist
						}
					}
					if name == "magma_block" {
						hazards.Magma++
					}
				}

				if dy < 0 && isEmpty(block) {
					below := c.BlockAt(game.Vec3{X: vec.X, Y: vec.Y - 1, Z: vec.Z})
					if isEmpty(below) {
						hazards.Voids++
						if hazards.ClosestVoid == nil || dist < closestVoidDist {
							hazards.ClosestVoid = hazardRef(pos, dist)
							closestVoidDist = dist
						}
					}
				}
			}
		}
	}
	return hazards
}

func hazardRef(pos BlockPos, dist float64) *HazardRef {
	return &HazardRef{X: pos.X, Y: pos.Y, Z: pos.Z, Distance: math.Round(dist*10) / 10}
}

func isEmpty(b *game.Block) bool {
	return b == nil || b.Empty || b.Name == "air"
}

// composeWarnings collects hazard, lighting and hostile warnings.
func (s *Sampler) composeWarnings(snap *Snapshot) []string {
	var warnings []string
	if snap.Hazards.Liquids > 0 {
		msg := fmt.Sprintf("%d liquid blocks nearby", snap.Hazards.Liquids)
		if snap.Hazards.Lava > 0 {
			msg = fmt.Sprintf("%s (%d lava)", msg, snap.Hazards.Lava)
		}
		warnings = append(warnings, msg)
	}
	if snap.Hazards.Voids > 0 {
		warnings = append(warnings, fmt.Sprintf("%d drop-offs nearby", snap.Hazards.Voids))
	}
	if snap.Lighting != nil && snap.Lighting.Block < lowLightThreshold {
		warnings = append(warnings, fmt.Sprintf("low light (block light %d)", snap.Lighting.Block))
	}
	if snap.Entities.Hostile > 0 {
		var names []string
		for _, d := range snap.Entities.Details {
			if d.Kind == "hostile" && len(names) < 3 {
				names = append(names, d.Name)
			}
		}
		msg := fmt.Sprintf("%d hostile mobs nearby", snap.Entities.Hostile)
		if len(names) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, strings.Join(names, ", "))
		}
		warnings = append(warnings, msg)
	}
	return warnings
}

// composeSummary joins short tags into the one-line snapshot summary.
func composeSummary(snap *Snapshot) string {
	var tags []string
	if snap.Entities.Hostile > 0 {
		tags = append(tags, fmt.Sprintf("hostiles:%d", snap.Entities.Hostile))
	}
	if snap.Hazards.Liquids > 0 {
		tags = append(tags, fmt.Sprintf("liquids:%d", snap.Hazards.Liquids))
	}
	if snap.Hazards.Voids > 0 {
		tags = append(tags, fmt.Sprintf("voids:%d", snap.Hazards.Voids))
	}
	tags = append(tags, snap.Weather.Label)
	if snap.Time.IsDay {
		tags = append(tags, "day")
	} else {
		tags = append(tags, "night")
	}
	if snap.Lighting != nil && snap.Lighting.Block < lowLightThreshold {
		tags = append(tags, "dark")
	}
	return strings.Join(tags, "/")
}
