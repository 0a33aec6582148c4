package geo

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestSuggestCitiesFiltersRegion(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, "/communes", r.URL.Path)
        assert.Equal(t, "boul", r.URL.Query().Get("nom"))
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`[
            {"nom":"Boulogne-Billancourt","codeDepartement":"92","codesPostaux":["92100"]},
            {"nom":"Boulogne-sur-Mer","codeDepartement":"62","codesPostaux":["62200"]},
            {"nom":"Paris","codeDepartement":"75","codesPostaux":["75002","75001"]}
        ]`))
    }))
    defer srv.Close()

    got := NewClient(srv.URL+"/", time.Second).SuggestCities(context.Background(), " boul ")
    assert.Equal(t, []Suggestion{
        {City: "Boulogne-Billancourt", PostalCode: "92100"},
        {City: "Paris", PostalCode: "75001"},
        {City: "Paris", PostalCode: "75002"},
    }, got)
}

func TestSuggestCitiesSwallowsFailures(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusBadGateway)
    }))
    defer srv.Close()
    c := NewClient(srv.URL, time.Second)
    assert.Equal(t, []Suggestion{}, c.SuggestCities(context.Background(), "Paris"))

    garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`{not json`))
    }))
    defer garbage.Close()
    assert.Empty(t, NewClient(garbage.URL, time.Second).SuggestCities(context.Background(), "Paris"))

    assert.Empty(t, NewClient("http://127.0.0.1:1", 100*time.Millisecond).SuggestCities(context.Background(), "Paris"))
}

func TestSuggestCitiesShortPrefixSkipsUpstream(t *testing.T) {
    called := false
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
    defer srv.Close()
    assert.Empty(t, NewClient(srv.URL, time.Second).SuggestCities(context.Background(), "P"))
    assert.False(t, called)
}

func TestFilterCapsSuggestions(t *testing.T) {
    var cs []commune
    for i := 0; i < 20; i++ {
        cs = append(cs, commune{Nom: "Paris", CodeDepartement: "75", CodesPostaux: []string{"750" + string(rune('0'+i/10)) + string(rune('0'+i%10))}})
    }
    assert.Len(t, filter(cs), maxSuggestions)
}
