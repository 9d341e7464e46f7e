package device

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jitinsharma/sunshine-wear/apimodel"
	"github.com/jitinsharma/sunshine-wear/internal/srv/config"
	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/jitinsharma/sunshine-wear/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testApiKey = "test-key"

type fakeProvider struct{}

func (fakeProvider) WeatherStatus() apimodel.WeatherStatus {
	return apimodel.WeatherStatus{Synced: true, High: "75", Low: "60", Time: "14:00", IconState: "present", Seq: 1, Connection: "subscribed"}
}

func (fakeProvider) DisplayStatus() apimodel.DisplayStatus {
	return apimodel.DisplayStatus{State: "visible_interactive", Mode: "interactive", Visible: true, AntiAlias: true}
}

func newTestApi(t *testing.T) (*Api, *httptest.Server) {
	serverConfig := &config.ServerConfig{
		ServerParam: &config.ServerParam{ApiParam: config.ApiParam{Enabled: true, ApiKey: testApiKey}},
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	})
	api := NewApi(serverConfig, fakeProvider{}, metrics)
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)
	return api, server
}

func do(t *testing.T, server *httptest.Server, method string, path string, apiKey string) *http.Response {
	req, err := http.NewRequest(method, server.URL+path, nil)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// answer replies to the next api event and returns the platform event it carried
func answer(api *Api, err error) chan event.PlatformEvent {
	received := make(chan event.PlatformEvent, 1)
	go func() {
		ev := <-api.EventChannel()
		received <- ev.Data.(event.ApiEventPlatformData).Event
		ev.Result <- err
	}()
	return received
}

func TestApiKeyRequired(t *testing.T) {
	_, server := newTestApi(t)

	assert.Equal(t, http.StatusForbidden, do(t, server, "GET", "/api/is_alive", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, server, "GET", "/api/is_alive", "wrong").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, server, "GET", "/api/is_alive", testApiKey).StatusCode)
}

func TestMetricsWithoutApiKey(t *testing.T) {
	_, server := newTestApi(t)
	assert.Equal(t, http.StatusOK, do(t, server, "GET", "/metrics", "").StatusCode)
}

func TestWeatherStatus(t *testing.T) {
	_, server := newTestApi(t)

	resp := do(t, server, "GET", "/api/weather", testApiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status apimodel.WeatherStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, fakeProvider{}.WeatherStatus(), status)
}

func TestVersion(t *testing.T) {
	_, server := newTestApi(t)

	resp := do(t, server, "GET", "/api/version", testApiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, version.AppVersion.String(), body["version"])
}

func TestDisplayStatus(t *testing.T) {
	_, server := newTestApi(t)

	resp := do(t, server, "GET", "/api/display", testApiKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status apimodel.DisplayStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "visible_interactive", status.State)
}

func TestPlatformEvents(t *testing.T) {
	api, server := newTestApi(t)

	cases := []struct {
		path string
		data interface{}
	}{
		{"/api/event/visibility/true", event.VisibilityData{Visible: true}},
		{"/api/event/ambient/1", event.AmbientModeData{Ambient: true}},
		{"/api/event/properties/false", event.PropertiesData{LowBitAmbient: false}},
		{"/api/event/tick", event.TimeTickData{}},
		{"/api/event/tap", event.TapData{}},
		{"/api/event/timezone/America/New_York", event.TimezoneData{TzId: "America/New_York"}},
	}

	for _, c := range cases {
		received := answer(api, nil)
		resp := do(t, server, "POST", c.path, testApiKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode, c.path)
		assert.Equal(t, c.data, (<-received).Data, c.path)
	}
}

func TestPlatformEventErrors(t *testing.T) {
	api, server := newTestApi(t)

	assert.Equal(t, http.StatusBadRequest, do(t, server, "POST", "/api/event/visibility/maybe", testApiKey).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, server, "POST", "/api/event/timezone/Nowhere/Land", testApiKey).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, server, "GET", "/api/event/tap", testApiKey).StatusCode)

	answer(api, errors.New("refused"))
	assert.Equal(t, http.StatusForbidden, do(t, server, "POST", "/api/event/tap", testApiKey).StatusCode)
}
