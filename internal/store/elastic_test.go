package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// fakeElasticSearch serves canned _search pages for total documents,
// honoring search_after continuations the way the real cluster would.
func fakeElasticSearch(total int, searches *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/_search") {
			fmt.Fprint(w, `{}`)
			return
		}
		*searches++

		body, _ := io.ReadAll(r.Body)
		var req struct {
			SearchAfter []any `json:"search_after"`
		}
		start := 0
		if json.Unmarshal(body, &req) == nil && len(req.SearchAfter) > 0 {
			if id, ok := req.SearchAfter[0].(string); ok {
				fmt.Sscanf(id, "ioc-%d", &start)
				start++
			}
		}
		end := start + elasticScanPageSize
		if end > total {
			end = total
		}

		hits := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			id := fmt.Sprintf("ioc-%05d", i)
			hits = append(hits, fmt.Sprintf(`{"_source":{"id":%q},"sort":[%q]}`, id, id))
		}
		fmt.Fprintf(w, `{"hits":{"total":{"value":%d},"hits":[%s]}}`, total, strings.Join(hits, ","))
	}
}

func TestElasticStore_ListIOCIDsPagesPastWindow(t *testing.T) {
	const total = elasticScanPageSize + 3

	var searches int
	srv := httptest.NewServer(fakeElasticSearch(total, &searches))
	defer srv.Close()

	s, err := NewElasticStore(ElasticConfig{Hosts: []string{srv.URL}})
	require.NoError(t, err)

	ids, err := s.ListIOCIDs(context.Background(), models.NewTenantContext("tenant-a"))
	require.NoError(t, err)
	require.Len(t, ids, total)
	assert.Equal(t, "ioc-00000", ids[0])
	assert.Equal(t, fmt.Sprintf("ioc-%05d", total-1), ids[len(ids)-1])
	assert.Equal(t, 2, searches, "the remainder must be fetched with search_after")
}
