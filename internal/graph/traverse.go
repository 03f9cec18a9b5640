package graph

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// Node is an entry reached by Traverse.
type Node struct {
	Memory *model.Memory          `json:"memory"`
	Depth  int                    `json:"depth"`
	FromID string                 `json:"from_id,omitempty"`
	Via    model.RelationshipType `json:"via,omitempty"`
}

type visitKey struct {
	id    string
	scope string
}

// Traverse expands breadth-first from start up to maxDepth hops, following
// edges of type rel (or any type when rel is empty). Each entry appears once;
// the start entry is first at depth 0. At most the configured fanout of edges
// is examined per node.
func (g *Manager) Traverse(ctx context.Context, start model.Key, maxDepth int, rel model.RelationshipType) ([]Node, error) {
	if rel != "" {
		if err := rel.Validate(); err != nil {
			return nil, err
		}
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}

	root, err := g.load(ctx, start)
	if err != nil {
		return nil, goerr.Wrap(err, "load traversal start", goerr.V("id", start.ID))
	}

	now := g.now()
	visited := map[visitKey]bool{{root.ID, root.Scope}: true}
	nodes := []Node{{Memory: root, Depth: 0}}
	frontier := []*model.Memory{root}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []*model.Memory
		for _, cur := range frontier {
			if err := ctx.Err(); err != nil {
				return nodes, goerr.Wrap(err, "traversal interrupted", goerr.V("depth", depth))
			}

			examined := 0
			for _, e := range cur.Edges() {
				if examined == g.fanout {
					break
				}
				if rel != "" && e.Type != rel {
					continue
				}
				examined++

				if visited[visitKey{e.TargetID, e.TargetScope}] {
					continue
				}
				target, ok := g.target(ctx, cur, e, now)
				if !ok {
					continue
				}
				k := visitKey{target.ID, target.Scope}
				if visited[k] {
					continue
				}
				visited[k] = true

				nodes = append(nodes, Node{Memory: target, Depth: depth, FromID: cur.ID, Via: e.Type})
				next = append(next, target)
			}
		}
		frontier = next
	}
	return nodes, nil
}
