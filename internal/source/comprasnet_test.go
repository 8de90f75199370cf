package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaradar/radar/internal/model"
)

func TestComprasNet_FetchMapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-08-01", r.URL.Query().Get("data_publicacao_min"))
		assert.Equal(t, "SP", r.URL.Query().Get("uf"))
		fmt.Fprint(w, `{
			"_embedded": {"licitacoes": [{
				"identificador": "30000112345",
				"objeto": "fornecimento de gênero alimentício",
				"valor_estimado": 98000,
				"uf": "SP",
				"modalidade_descricao": "Pregão",
				"data_publicacao": "2026-08-05",
				"data_abertura_proposta": "2026-08-20"
			}]},
			"count": 1,
			"_links": {}
		}`)
	}))
	defer srv.Close()

	client := NewComprasNetClient(srv.URL, fastOptions())
	items, err := client.Fetch(context.Background(), pncpParams())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "comprasnet", item.Source)
	assert.Equal(t, "30000112345", item.NativeID)
	assert.Equal(t, 98000.0, item.ValueBRL)
	assert.Equal(t, "Pregão", item.Modality)
	require.NotNil(t, item.OpensAt)
}

func TestComprasNet_FiltersUnwantedRegionsLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Multi-region searches cannot be filtered upstream.
		assert.Empty(t, r.URL.Query().Get("uf"))
		fmt.Fprint(w, `{
			"_embedded": {"licitacoes": [
				{"identificador": "1", "objeto": "a", "uf": "SP", "data_publicacao": "2026-08-05"},
				{"identificador": "2", "objeto": "b", "uf": "MG", "data_publicacao": "2026-08-05"},
				{"identificador": "3", "objeto": "c", "uf": "RJ", "data_publicacao": "2026-08-05"}
			]},
			"count": 3,
			"_links": {}
		}`)
	}))
	defer srv.Close()

	client := NewComprasNetClient(srv.URL, fastOptions())
	params := model.SearchParams{Regions: []string{"SP", "RJ"}, DateFrom: "2026-08-01", DateTo: "2026-08-31"}
	items, err := client.Fetch(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].NativeID)
	assert.Equal(t, "3", items[1].NativeID)
}

func TestComprasNet_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"_embedded": {"licitacoes": []}, "count": 0, "_links": {}}`)
	}))
	defer srv.Close()

	client := NewComprasNetClient(srv.URL, fastOptions())
	items, err := client.Fetch(context.Background(), pncpParams())
	require.NoError(t, err)
	assert.Empty(t, items)
}
