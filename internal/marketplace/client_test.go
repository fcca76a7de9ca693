package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><script>var item_details = {"300": ["C", 8], "100": ["A", 8], "200": ["B", 8], "x": []};</script></html>`))
	})
	mux.HandleFunc("/item/100", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><script>
			var other = 1;
			var bc_copies_data = {"num_bc_copies": 2, "owner_ids": [11, 12], "owner_names": ["a;b", "c"],
				"bc_uaids": ["1001", 1002], "bc_serials": [null, 5], "bc_updated": [1700000000000, 1700000005000]};
		</script></html>`))
	})
	mux.HandleFunc("/item/404", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><script>var nothing = 1;</script></html>`))
	})
	mux.HandleFunc("/uaid/1001", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div class="card rounded-0 my-2 shadow border-0"><a href="/player/12">x</a></div>
			<div class="card rounded-0 my-2 shadow border-0"><a href="/player/11">y</a></div>`))
	})
	mux.HandleFunc("/player/11", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>var scanned_player_assets = {"100": [[1001, null, 1600000000000, 1700000000000], [1003, 7, 1600000000000, null]], "200": [[2001, 3, 1600000000000, 1690000000000]]};</script>`))
	})
	mux.HandleFunc("/player/12", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>var scanned_player_assets = [];</script>`))
	})
	mux.HandleFunc("/api/players/v1/playerassets/11", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "playerId": 11, "playerAssets": {"100": [1001, 1004], "200": [2001]}}`))
	})
	mux.HandleFunc("/uaid/500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(server *httptest.Server) *Client {
	transport := NewHTTPTransport(WithTimeout(5 * time.Second))
	return NewClient(server.URL, server.URL+"/api", WithTransport(transport))
}

func TestClient_CatalogItemIDs(t *testing.T) {
	c := newTestClient(newTestServer(t))

	ids, err := c.CatalogItemIDs(context.Background())
	if err != nil {
		t.Fatalf("CatalogItemIDs failed: %v", err)
	}

	want := []int64{100, 200, 300}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestClient_ItemCopies(t *testing.T) {
	c := newTestClient(newTestServer(t))

	copies, err := c.ItemCopies(context.Background(), 100)
	if err != nil {
		t.Fatalf("ItemCopies failed: %v", err)
	}

	if copies.ItemID != 100 {
		t.Errorf("ItemID = %d, want 100", copies.ItemID)
	}
	if !reflect.DeepEqual(copies.UAIDs, []int64{1001, 1002}) {
		t.Errorf("UAIDs = %v", copies.UAIDs)
	}
	if !reflect.DeepEqual(copies.OwnerIDs, []int64{11, 12}) {
		t.Errorf("OwnerIDs = %v", copies.OwnerIDs)
	}
	if !reflect.DeepEqual(copies.UpdatedAt, []int64{1700000000000, 1700000005000}) {
		t.Errorf("UpdatedAt = %v", copies.UpdatedAt)
	}
}

func TestClient_ItemCopies_MissingVariable(t *testing.T) {
	c := newTestClient(newTestServer(t))

	_, err := c.ItemCopies(context.Background(), 404)
	if !errors.Is(err, ErrMissingVariable) {
		t.Errorf("err = %v, want ErrMissingVariable", err)
	}
}

func TestClient_PastOwners(t *testing.T) {
	c := newTestClient(newTestServer(t))

	owners, err := c.PastOwners(context.Background(), 1001)
	if err != nil {
		t.Fatalf("PastOwners failed: %v", err)
	}
	if !reflect.DeepEqual(owners, []int64{12, 11}) {
		t.Errorf("owners = %v, want [12 11]", owners)
	}
}

func TestClient_PastOwners_StatusError(t *testing.T) {
	c := newTestClient(newTestServer(t))

	_, err := c.PastOwners(context.Background(), 500)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", se.StatusCode, http.StatusForbidden)
	}
	if se.IsRetryable() {
		t.Error("403 should not be retryable")
	}
}

func TestClient_PlayerAssets(t *testing.T) {
	c := newTestClient(newTestServer(t))

	assets, err := c.PlayerAssets(context.Background(), 11)
	if err != nil {
		t.Fatalf("PlayerAssets failed: %v", err)
	}

	if !reflect.DeepEqual(assets[100], []int64{1001, 1004}) {
		t.Errorf("assets[100] = %v", assets[100])
	}
	if !reflect.DeepEqual(assets[200], []int64{2001}) {
		t.Errorf("assets[200] = %v", assets[200])
	}
}

func TestClient_PlayerAssetHistory(t *testing.T) {
	c := newTestClient(newTestServer(t))

	history, err := c.PlayerAssetHistory(context.Background(), 11)
	if err != nil {
		t.Fatalf("PlayerAssetHistory failed: %v", err)
	}

	// The tuple with a null acquisition time is skipped.
	if len(history[100]) != 1 {
		t.Fatalf("history[100] = %v, want 1 entry", history[100])
	}
	a := history[100][0]
	if a.UAID != 1001 || a.OwnedSince != 1700000000000 || a.Serial != nil {
		t.Errorf("history[100][0] = %+v", a)
	}

	b := history[200][0]
	if b.Serial == nil || *b.Serial != 3 {
		t.Errorf("history[200][0].Serial = %v, want 3", b.Serial)
	}

	empty, err := c.PlayerAssetHistory(context.Background(), 12)
	if err != nil {
		t.Fatalf("PlayerAssetHistory(12) failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("history = %v, want empty", empty)
	}
}

func TestClient_PlayerAssets_Keys(t *testing.T) {
	c := newTestClient(newTestServer(t))

	assets, err := c.PlayerAssets(context.Background(), 11)
	if err != nil {
		t.Fatalf("PlayerAssets failed: %v", err)
	}

	keys := make([]int64, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if !reflect.DeepEqual(keys, []int64{100, 200}) {
		t.Errorf("keys = %v", keys)
	}
}
