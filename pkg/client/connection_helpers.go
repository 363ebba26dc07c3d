package client

import (
	"strings"

	"github.com/rs/zerolog"
)

// ResolveServerAddress picks the address to connect to. An explicit address
// wins; otherwise the last successfully connected address from state is
// used, falling back to the configured default server.
func ResolveServerAddress(explicit, configured string, state StateInterface, logger zerolog.Logger) string {
	if addr := strings.TrimSpace(explicit); addr != "" {
		return addr
	}

	if state != nil {
		addr, at, err := state.LastConnection()
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read connection history")
		} else if addr != "" {
			logger.Debug().Str("address", addr).Time("last_success", at).Msg("using connection history")
			return addr
		}
	}

	return strings.TrimSpace(configured)
}
