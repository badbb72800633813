package types

// Device is an installation identity registered with the server.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Platform      string `json:"platform"`
	Client        string `json:"client"`
	ClientVersion string `json:"client_version"`
	Hostname      string `json:"hostname"`
}

// DeviceRegistration is the POST /api/devices body.
type DeviceRegistration struct {
	Name           string `json:"name"`
	Platform       string `json:"platform"`
	Client         string `json:"client"`
	ClientVersion  string `json:"client_version"`
	Hostname       string `json:"hostname"`
	AllowExisting  bool   `json:"allow_existing"`
	AllowDuplicate bool   `json:"allow_duplicate"`
}
