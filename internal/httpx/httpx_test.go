package httpx

import (
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestPostJSON_SendsBodyAndDecodes(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, http.MethodPost, r.Method)
        assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
        assert.Equal(t, "swapquote/1.0", r.Header.Get("User-Agent"))
        assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
        var in map[string]string
        assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
        _ = json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
    }))
    defer srv.Close()

    c := New(time.Second)
    var out struct{ Echo string `json:"echo"` }
    err := PostJSON(t.Context(), c, srv.URL, http.Header{"X-Api-Key": []string{"k"}}, map[string]string{"q": "hi"}, &out)
    require.NoError(t, err)
    require.Equal(t, "hi", out.Echo)
}

func TestGetJSON_StatusError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTooManyRequests)
        _, _ = w.Write([]byte("slow down"))
    }))
    defer srv.Close()

    err := GetJSON(t.Context(), New(time.Second), srv.URL, nil, &struct{}{})
    var se *StatusError
    require.True(t, errors.As(err, &se))
    require.Equal(t, http.StatusTooManyRequests, se.Code)
    require.Equal(t, "slow down", se.Body)
}

func TestGetJSON_DecodeError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte("not json"))
    }))
    defer srv.Close()

    err := GetJSON(t.Context(), New(time.Second), srv.URL, nil, &struct{}{})
    require.ErrorContains(t, err, "decode")
}

func TestGetJSON_Timeout(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        time.Sleep(200 * time.Millisecond)
    }))
    defer srv.Close()

    err := GetJSON(t.Context(), New(50*time.Millisecond), srv.URL, nil, nil)
    require.Error(t, err)
}
