package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AllowClients rejects peers outside the given addresses or CIDR ranges. An
// empty list admits everyone.
func AllowClients(entries []string) (gin.HandlerFunc, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("allowed client %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("allowed client %q: %w", e, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}

	return func(c *gin.Context) {
		if len(prefixes) == 0 {
			c.Next()
			return
		}
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			if addr, perr := netip.ParseAddr(strings.TrimSpace(host)); perr == nil {
				addr = addr.Unmap()
				for _, p := range prefixes {
					if p.Contains(addr) {
						c.Next()
						return
					}
				}
			}
		}
		log.Warn().Str("remote", c.Request.RemoteAddr).Str("path", c.Request.URL.Path).Msg("client not allowed")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unauthorized IP"})
	}, nil
}
