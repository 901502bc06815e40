package httpapi

// Config defines HTTP API settings.
type Config struct {
	Addr                   string
	BasePath               string
	Cookie                 string
	InitialTranscriptLines int
	ProxyPrefix            string
	BackendURL             string
}

const (
	defaultCookie       = "forgecode_workspace"
	defaultProxyPrefix  = "/api/proxy"
	defaultInitialLines = 200
)
