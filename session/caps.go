package session

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/models"
)

// BuildCaps returns the capability set sent to the remote hub for desc.
// Credentials, project/build grouping and hub-side debugging options are
// merged with the target-specific keys.
func BuildCaps(remote config.RemoteConfig, desc models.ConfigurationDescriptor) map[string]any {
	caps := map[string]any{
		"browserstack.username":  remote.Username,
		"browserstack.accessKey": remote.AccessKey,
		"project":                remote.Project,
		"build":                  remote.Build,
		"name":                   desc.Label,
	}
	if remote.Debug {
		caps["browserstack.debug"] = "true"
		caps["browserstack.console"] = "verbose"
		caps["browserstack.networkLogs"] = "true"
	}

	switch {
	case desc.Desktop != nil:
		caps["os"] = desc.Desktop.OS
		caps["os_version"] = desc.Desktop.OSVersion
		caps["browser"] = desc.Desktop.Browser
		caps["browser_version"] = desc.Desktop.BrowserVersion
	case desc.Mobile != nil:
		caps["device"] = desc.Mobile.Device
		caps["os_version"] = desc.Mobile.OSVersion
		caps["browser"] = desc.Mobile.Browser
		if desc.Mobile.RealMobile {
			caps["real_mobile"] = "true"
		}
	}
	return caps
}

// EndpointURL encodes caps into the hub's websocket URL.
func EndpointURL(endpoint string, caps map[string]any) (string, error) {
	raw, err := json.Marshal(caps)
	if err != nil {
		return "", fmt.Errorf("session: encode caps: %w", err)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("session: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("caps", string(raw))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
