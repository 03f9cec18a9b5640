package store

import (
	"time"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/kv"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// sortTimeLayout is fixed width so lexical order of sort keys is chronological.
const sortTimeLayout = "20060102T150405.000000000Z"

func partitionKey(t model.MemoryType, scope string) string {
	return "MEM#" + string(t) + "#" + scope
}

func sortKey(createdAt time.Time, id string) string {
	return createdAt.UTC().Format(sortTimeLayout) + "#" + id
}

func scopeKey(scope string) string {
	return "SCOPE#" + scope
}

func typeKey(t model.MemoryType) string {
	return "TYPE#" + string(t)
}

func idKey(id string) string {
	return "ID#" + id
}

func itemKey(k model.Key) kv.Key {
	return kv.Key{PK: partitionKey(k.Type, k.Scope), SK: sortKey(k.CreatedAt, k.ID)}
}
