package http

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/adapters/signal"
	"github.com/dkeye/Call/internal/domain"
)

const (
	sessionName      = "CallSessions"
	sessionMemberKey = "member_id"
)

// IdentityMiddleware resolves the caller's member id, first from a bearer
// token (Authorization header or access_token query parameter, since
// browsers cannot set headers on a WebSocket upgrade), then from the
// session cookie set at registration. A present but invalid token is
// rejected; no identity at all is left to the route to decide.
func IdentityMiddleware(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			id, err := tokens.Verify(raw)
			if err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("rejected token")
				ErrorResponse(c, http.StatusUnauthorized, "invalid token")
				c.Abort()
				return
			}
			c.Set(signal.MemberKey, id)
			c.Next()
			return
		}
		if v, ok := sessions.Default(c).Get(sessionMemberKey).(int64); ok && v > 0 {
			c.Set(signal.MemberKey, domain.MemberID(v))
		}
		c.Next()
	}
}

// RequireIdentity rejects requests IdentityMiddleware could not attribute.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(signal.MemberKey); !ok {
			ErrorResponse(c, http.StatusUnauthorized, "identity required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return c.Query("access_token")
}

func rememberMember(c *gin.Context, id domain.MemberID) {
	sess := sessions.Default(c)
	sess.Set(sessionMemberKey, int64(id))
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
	}
}
