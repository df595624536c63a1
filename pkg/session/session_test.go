package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dibbsget/pkg/config"
	pkgerrors "dibbsget/pkg/errors"
	"dibbsget/pkg/logger"
)

const sampleState = `{
	"cookies": [
		{
			"name": "ASP.NET_SessionId",
			"value": "abc123session",
			"domain": "www.dibbs.bsm.dla.mil",
			"path": "/",
			"httpOnly": true,
			"secure": true,
			"sameSite": "Lax"
		},
		{
			"name": "DLAConsent",
			"value": "accepted",
			"domain": ".dibbs.bsm.dla.mil",
			"path": "/",
			"expires": 1788657600,
			"httpOnly": false,
			"secure": true,
			"sameSite": "None"
		}
	],
	"origins": [
		{
			"origin": "https://www.dibbs.bsm.dla.mil",
			"localStorage": [{"name": "banner", "value": "seen"}]
		}
	]
}`

func TestParseStorageState(t *testing.T) {
	state, err := ParseStorageState([]byte(sampleState))
	require.NoError(t, err)

	require.Len(t, state.Cookies, 2)
	assert.Equal(t, "ASP.NET_SessionId", state.Cookies[0].Name)
	assert.Equal(t, "abc123session", state.Cookies[0].Value)
	assert.True(t, state.Cookies[0].HTTPOnly)
	assert.True(t, state.Cookies[0].Secure)
	assert.Equal(t, "Lax", state.Cookies[0].SameSite)
	assert.Equal(t, ".dibbs.bsm.dla.mil", state.Cookies[1].Domain)

	require.Len(t, state.Origins, 1)
	assert.Equal(t, "seen", state.Origins[0].LocalStorage[0].Value)
}

func TestParseStorageStateMalformed(t *testing.T) {
	_, err := ParseStorageState([]byte("{not json"))
	assert.Error(t, err)
}

func TestLoadStorageStateMissingFile(t *testing.T) {
	_, err := LoadStorageState(filepath.Join(t.TempDir(), "cookies.json"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypePrecondition))
}

func TestLoadStorageStateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleState), 0600))

	state, err := LoadStorageState(path)
	require.NoError(t, err)
	assert.Len(t, state.Cookies, 2)
}

func TestBuildPopulatesJarAndHeaders(t *testing.T) {
	state, err := ParseStorageState([]byte(sampleState))
	require.NoError(t, err)

	sess, err := Build(state, config.HTTPConfig{
		UserAgent: "test-agent",
		Referer:   "https://www.dibbs.bsm.dla.mil/",
	}, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "test-agent", sess.Headers["User-Agent"])
	assert.Equal(t, "https://www.dibbs.bsm.dla.mil/", sess.Headers["Referer"])
	assert.Equal(t, "*/*", sess.Headers["Accept"])
	assert.Equal(t, "keep-alive", sess.Headers["Connection"])

	u, err := url.Parse("https://www.dibbs.bsm.dla.mil/Downloads/RFQ/Archive/bq250903.zip")
	require.NoError(t, err)

	cookies := sess.Jar.Cookies(u)
	names := make(map[string]string)
	for _, c := range cookies {
		names[c.Name] = c.Value
	}
	assert.Equal(t, "abc123session", names["ASP.NET_SessionId"])
	assert.Equal(t, "accepted", names["DLAConsent"])
}

func TestBuildRejectsCookieWithoutDomain(t *testing.T) {
	state := &StorageState{Cookies: []Cookie{{Name: "orphan", Value: "x"}}}
	_, err := Build(state, config.HTTPConfig{UserAgent: "ua"}, logger.NewNop())
	assert.Error(t, err)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, parseSameSite("Strict"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("lax"))
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("None"))
	assert.Equal(t, http.SameSiteDefaultMode, parseSameSite(""))
	assert.Equal(t, http.SameSiteDefaultMode, parseSameSite("bogus"))
}
