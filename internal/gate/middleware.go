package gate

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jackmoore7/coles-web-app/internal/errx"
)

// clientIPHeader is set by the trusted Cloudflare proxy in front of the
// service. In production a request without it is rejected outright.
const clientIPHeader = "CF-Connecting-IP"

// Gate combines the origin allow-list and the adaptive ban list into one
// gin middleware. Both checks run before any handler.
type Gate struct {
	networks   *NetworkSet
	bans       *BanList
	production bool
}

func New(networks *NetworkSet, bans *BanList, production bool) *Gate {
	return &Gate{networks: networks, bans: bans, production: production}
}

// bufferedWriter holds the handler's body back until the gate has decided
// whether to replace a not-found response with a ban payload. gin defers
// writing the status line until the first body write, so an unflushed
// buffer leaves the status replaceable too.
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

// Middleware admits or rejects the request, runs the handler with a
// buffered response, and escalates a not-found into a ban when the strike
// threshold is reached.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, ok := g.clientIP(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errx.ForbiddenMessage})
			return
		}

		if banned, retryAfter := g.bans.Check(ip); banned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":               errx.ForbiddenMessage,
				"retry_after_seconds": int(retryAfter.Seconds()),
			})
			return
		}

		bw := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()
		c.Writer = bw.ResponseWriter

		if bw.Status() == http.StatusNotFound {
			if banned, retryAfter := g.bans.RecordNotFound(ip); banned {
				writeBan(c, retryAfter)
				return
			}
		}
		// Flush the handler's response unchanged.
		if bw.buf.Len() > 0 {
			_, _ = bw.ResponseWriter.Write(bw.buf.Bytes())
		} else {
			bw.ResponseWriter.WriteHeaderNow()
		}
	}
}

// clientIP resolves the IP used as the ban key. Production requires the
// proxy header and a source inside the Cloudflare networks; elsewhere
// gin's best-effort client IP is good enough.
func (g *Gate) clientIP(c *gin.Context) (string, bool) {
	if !g.production {
		return c.ClientIP(), true
	}
	raw := c.GetHeader(clientIPHeader)
	if raw == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", false
	}
	if !g.networks.Contains(addr) {
		return "", false
	}
	return addr.String(), true
}

// writeBan replaces whatever the handler produced with the ban payload.
// The buffered body is simply dropped.
func writeBan(c *gin.Context, retryAfter time.Duration) {
	c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.Writer.WriteHeader(http.StatusForbidden)
	body, _ := json.Marshal(gin.H{
		"error":               errx.ForbiddenMessage,
		"retry_after_seconds": int(retryAfter.Seconds()),
	})
	_, _ = c.Writer.Write(body)
}
