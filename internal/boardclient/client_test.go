package boardclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func twoCardView() View {
	return View{
		Columns: []Column{
			{Status: "To Do", Cards: []Card{{ID: "a"}}},
			{Status: "In Progress"},
			{Status: "Done", Cards: []Card{{ID: "c"}}},
			{Status: "Blocked"},
		},
		Total: 2,
	}
}

func TestPruneDropsCardsNoLongerShown(t *testing.T) {
	m := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
	Prune(m, twoCardView(), "d")

	if len(m) != 3 {
		t.Fatalf("expected 3 entries, got %v", m)
	}
	for _, id := range []string{"a", "c", "d"} {
		if _, ok := m[id]; !ok {
			t.Fatalf("expected %s to be kept", id)
		}
	}
	if _, ok := m["b"]; ok {
		t.Fatal("expected b to be pruned")
	}

	Prune(m, View{}, "")
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestBoardAndSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/board/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "fix pump" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"columns":[{"status":"To Do","cards":[{"id":"a","title":"Fix pump"}]}],"total":1}`))
	})
	mux.HandleFunc("POST /api/tasks/a/drop", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"failed to update status: rls denied"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL + "/")
	v, err := c.Board("fix pump")
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if v.Total != 1 || !v.IDs()["a"] {
		t.Fatalf("unexpected view %+v", v)
	}

	err = c.Send("POST", "api/tasks/a/drop", []byte(`{"status":"Done"}`))
	if err == nil || err.Error() != "failed to update status: rls denied" {
		t.Fatalf("expected server error message, got %v", err)
	}

	if _, err := c.Employees(); err == nil {
		t.Fatal("expected error for missing route")
	}
}
