// Package strategy holds the ordered table of spoofed client identities
// presented to the remote service. Remote bot-detection keys on the player
// client and user agent, so each entry impersonates a different official
// client. Order is retry precedence: the clients most likely to get an
// unthrottled response come first, and the last entry carries no identity
// override at all so the external tool's own defaults get a final chance.
package strategy

// Client is one spoofed identity. Args are appended verbatim to the
// external tool invocation.
type Client struct {
	Name string
	Args []string
}

var table = []Client{
	{
		Name: "android",
		Args: []string{
			"--extractor-args", "youtube:player_client=android",
			"--user-agent", "Mozilla/5.0 (Linux; Android 13; SM-S901B) AppleWebKit/537.36",
			"--add-header", "Accept:application/json",
			"--add-header", "Accept-Language:en-US,en;q=0.9",
			"--add-header", "Origin:https://www.youtube.com",
		},
	},
	{
		Name: "ios",
		Args: []string{
			"--extractor-args", "youtube:player_client=ios",
			"--user-agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X)",
			"--add-header", "Accept:application/json",
			"--add-header", "Accept-Language:en-US,en;q=0.9",
			"--add-header", "Origin:https://www.youtube.com",
		},
	},
	{
		Name: "web",
		Args: []string{
			"--extractor-args", "youtube:player_client=web",
			"--user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
	},
	{
		// no identity override, tool defaults
		Name: "default",
	},
}

// Table returns the process-wide strategy list. Callers must not mutate it.
func Table() []Client { return table }
