package federation

import (
	"github.com/roach88/claimgraph/internal/graph"
)

// Group keys of a non-first response item.
const (
	keyServer = "server"
	keyTotal  = "total"
	keyItems  = "items"
)

// Merge combines partner responses with the local result.
//
// Partner responses hold one {server, total, items} group per server that
// answered. Groups are deduplicated by server, keeping the first seen. The
// first server flattens every group into plain rows; intermediate servers
// keep the groups and append their own local group last.
func Merge(first bool, self string, local graph.Results, partners []*graph.Results) graph.Results {
	out := graph.Results{Items: []map[string]any{}}
	seen := map[string]bool{self: true}

	for _, res := range partners {
		if res == nil {
			continue
		}
		for _, group := range res.Items {
			server, _ := group[keyServer].(string)
			items, ok := toRows(group[keyItems])
			if server == "" || !ok || seen[server] {
				continue
			}
			seen[server] = true

			total := toInt(group[keyTotal])
			if first {
				out.Items = append(out.Items, items...)
			} else {
				out.Items = append(out.Items, newGroup(server, total, items))
			}
			out.TotalCount += total
		}
	}

	if first {
		out.Items = append(out.Items, local.Items...)
	} else {
		out.Items = append(out.Items, newGroup(self, local.TotalCount, local.Items))
	}
	out.TotalCount += local.TotalCount
	return out
}

func newGroup(server string, total int, items []map[string]any) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	return map[string]any{
		keyServer: server,
		keyTotal:  total,
		keyItems:  items,
	}
}

// toRows accepts rows built in-process or decoded from JSON.
func toRows(v any) ([]map[string]any, bool) {
	switch rows := v.(type) {
	case []map[string]any:
		return rows, true
	case []any:
		out := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			m, ok := r.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}
