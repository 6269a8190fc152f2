package skills

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/clock"
)

// Skill is a registered, named procedure the planner can invoke by id.
type Skill struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
}

// Registry is the in-memory skill store. All operations are logged to the
// history log.
type Registry struct {
	clk clock.Clock
	log *Logger

	mu     sync.Mutex
	skills map[string]Skill
}

// NewRegistry builds an empty Registry.
func NewRegistry(clk clock.Clock, log *Logger) *Registry {
	return &Registry{clk: clk, log: log, skills: make(map[string]Skill)}
}

// Register validates and upserts a skill. All string fields are trimmed;
// id, title, description and at least one non-empty step are required.
func (r *Registry) Register(id, title, description string, steps, tags []string) (Skill, error) {
	skill := Skill{
		ID:          strings.TrimSpace(id),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Steps:       trimAll(steps),
		Tags:        trimAll(tags),
		CreatedAt:   r.clk.Now().UnixMilli(),
	}
	switch {
	case skill.ID == "":
		return Skill{}, fmt.Errorf("skill id is required")
	case skill.Title == "":
		return Skill{}, fmt.Errorf("skill title is required")
	case skill.Description == "":
		return Skill{}, fmt.Errorf("skill description is required")
	case len(skill.Steps) == 0:
		return Skill{}, fmt.Errorf("skill needs at least one step")
	}

	r.mu.Lock()
	_, existed := r.skills[skill.ID]
	r.skills[skill.ID] = skill
	r.mu.Unlock()

	r.log.Log("info", "skill.register", map[string]any{
		"skillId": skill.ID,
		"title":   skill.Title,
		"steps":   len(skill.Steps),
		"updated": existed,
	})
	return skill, nil
}

// Invoke looks a skill up for execution. Unknown ids are logged as
// skill.invoke.missing and returned as errors.
func (r *Registry) Invoke(id string, context map[string]any) (Skill, error) {
	key := strings.TrimSpace(id)
	r.mu.Lock()
	skill, ok := r.skills[key]
	r.mu.Unlock()

	if !ok {
		r.log.Log("warn", "skill.invoke.missing", map[string]any{
			"skillId": key,
			"context": context,
		})
		return Skill{}, fmt.Errorf("unknown skill %q", key)
	}

	r.log.Log("info", "skill.invoke", map[string]any{
		"skillId": key,
		"title":   skill.Title,
		"context": context,
	})
	return skill, nil
}

// Explore records an exploration request for a skill idea and returns the
// chat hint announcing it.
func (r *Registry) Explore(id, description string, context map[string]any) string {
	key := strings.TrimSpace(id)
	r.log.Log("info", "skill.explore", map[string]any{
		"skillId":     key,
		"description": strings.TrimSpace(description),
		"context":     context,
	})
	return fmt.Sprintf("Exploring skill idea %q: %s", key, strings.TrimSpace(description))
}

// Get returns a skill by id.
func (r *Registry) Get(id string) (Skill, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skill, ok := r.skills[strings.TrimSpace(id)]
	return skill, ok
}

// List returns all skills sorted by id.
func (r *Registry) List() []Skill {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// trimAll trims every entry and drops the empty ones.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
