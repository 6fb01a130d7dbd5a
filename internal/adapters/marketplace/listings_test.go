package marketplace_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/listinglab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patchBody struct {
	ProductID string `json:"product_id"`
	Patches   []struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value []struct {
			Value         any    `json:"value"`
			MarketplaceID string `json:"marketplace_id"`
		} `json:"value"`
	} `json:"patches"`
}

func TestApplyContentUpdate_Title(t *testing.T) {
	var got patchBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/listings/BOTTLE-1L", r.URL.Path)
		assert.Equal(t, "ATVPDKIKX0DER", r.URL.Query().Get("marketplace_id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status": "ACCEPTED", "submission_id": "sub-1"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).ApplyContentUpdate(t.Context(), domain.ContentUpdate{
		ProductRef:  "B0TEST0001",
		SKU:         "BOTTLE-1L",
		Marketplace: "ATVPDKIKX0DER",
		Type:        domain.TypeTitle,
		Content:     domain.TitleContent{Text: "Insulated Steel Bottle"},
	})
	require.NoError(t, err)

	assert.Equal(t, "B0TEST0001", got.ProductID)
	require.Len(t, got.Patches, 1)
	assert.Equal(t, "replace", got.Patches[0].Op)
	assert.Equal(t, "/attributes/item_name", got.Patches[0].Path)
	require.Len(t, got.Patches[0].Value, 1)
	assert.Equal(t, "Insulated Steel Bottle", got.Patches[0].Value[0].Value)
	assert.Equal(t, "ATVPDKIKX0DER", got.Patches[0].Value[0].MarketplaceID)
}

func TestApplyContentUpdate_BulletPointsOneValueEach(t *testing.T) {
	var got patchBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status": "ACCEPTED"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).ApplyContentUpdate(t.Context(), domain.ContentUpdate{
		SKU:         "BOTTLE-1L",
		Marketplace: "ATVPDKIKX0DER",
		Type:        domain.TypeBulletPoints,
		Content:     domain.BulletPointsContent{Bullets: []string{"Keeps cold 24h", "BPA free", "1 litre"}},
	})
	require.NoError(t, err)
	require.Len(t, got.Patches, 1)
	assert.Equal(t, "/attributes/bullet_point", got.Patches[0].Path)
	assert.Len(t, got.Patches[0].Value, 3)
}

func TestApplyContentUpdate_MultivariateNeverSent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	err := newTestClient(srv).ApplyContentUpdate(t.Context(), domain.ContentUpdate{
		SKU:     "BOTTLE-1L",
		Type:    domain.TypeMultivariate,
		Content: domain.MultivariateContent{Title: "T"},
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedExperimentType)
	assert.Zero(t, calls.Load())
}

func TestApplyContentUpdate_MismatchedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	err := newTestClient(srv).ApplyContentUpdate(t.Context(), domain.ContentUpdate{
		SKU:     "BOTTLE-1L",
		Type:    domain.TypeTitle,
		Content: domain.ImageContent{URL: "https://img.example.com/a.jpg"},
	})
	assert.Error(t, err)
}

func TestApplyContentUpdate_InvalidSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "INVALID", "issues": [{"code": "90220", "message": "item_name too long", "severity": "ERROR"}]}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).ApplyContentUpdate(t.Context(), domain.ContentUpdate{
		SKU:         "BOTTLE-1L",
		Marketplace: "ATVPDKIKX0DER",
		Type:        domain.TypeTitle,
		Content:     domain.TitleContent{Text: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item_name too long")
}
