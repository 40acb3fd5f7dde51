package session

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/models"
)

func testRemote() config.RemoteConfig {
	return config.RemoteConfig{
		Endpoint:  "wss://cdp.browserstack.com/puppeteer",
		Username:  "alice",
		AccessKey: "secret",
		Project:   "El Pais Scraper",
		Build:     "v1.0",
		Debug:     true,
	}
}

func TestBuildCaps_Desktop(t *testing.T) {
	desc := models.DefaultTargets()[0]
	caps := BuildCaps(testRemote(), desc)

	assert.Equal(t, "alice", caps["browserstack.username"])
	assert.Equal(t, "secret", caps["browserstack.accessKey"])
	assert.Equal(t, "El Pais Scraper", caps["project"])
	assert.Equal(t, "v1.0", caps["build"])
	assert.Equal(t, desc.Label, caps["name"])
	assert.Equal(t, "Windows", caps["os"])
	assert.Equal(t, "10", caps["os_version"])
	assert.Equal(t, "Chrome", caps["browser"])
	assert.Equal(t, "verbose", caps["browserstack.console"])
	assert.NotContains(t, caps, "device")
}

func TestBuildCaps_Mobile(t *testing.T) {
	remote := testRemote()
	remote.Debug = false
	desc := models.DefaultTargets()[3]
	caps := BuildCaps(remote, desc)

	assert.Equal(t, "iPhone 13", caps["device"])
	assert.Equal(t, "true", caps["real_mobile"])
	assert.NotContains(t, caps, "browserstack.debug")
	assert.NotContains(t, caps, "os")
}

func TestEndpointURL_EncodesCaps(t *testing.T) {
	caps := BuildCaps(testRemote(), models.DefaultTargets()[1])
	raw, err := EndpointURL("wss://cdp.browserstack.com/puppeteer", caps)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wss", u.Scheme)
	assert.Equal(t, "/puppeteer", u.Path)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("caps")), &decoded))
	assert.Equal(t, "Safari", decoded["browser"])
	assert.Equal(t, "Monterey", decoded["os_version"])
}

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"pagead2.googlesyndication.com", true},
		{"SECURE.ADNXS.COM", true},
		{"elpais.com", false},
		{"imagenes.elpais.com", false},
		{"net", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, isAdDomain(tt.host))
		})
	}
}

func TestBlockedTypeSet_IgnoresUnknown(t *testing.T) {
	set := blockedTypeSet([]string{"Font", "Media", "Bogus"})
	assert.Len(t, set, 2)
}
