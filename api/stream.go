package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/realtime"
)

const streamHeartbeat = 25 * time.Second

func streamEvents(hub *realtime.Hub, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		// EventSource cannot set headers, so the token may arrive as a
		// query parameter instead.
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		session := hub.Attach()
		defer hub.Detach(session.ID)
		c.Response().Header().Set("X-Session-ID", session.ID)
		logger.WithFields(log.Fields{"sessionId": session.ID, "userId": userID}).Debug("stream attached")

		// The client needs the session id to join rooms over HTTP.
		if _, err := c.Response().Write([]byte("event: session\ndata: {\"sessionId\":\"" + session.ID + "\"}\n\n")); err != nil {
			return err
		}
		flusher.Flush()

		ctx := c.Request().Context()
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-heartbeat.C:
				if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
					return err
				}
				flusher.Flush()
			case payload, open := <-session.C():
				if !open {
					return nil
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return err
				}
				if _, err := c.Response().Write(payload); err != nil {
					return err
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return err
				}
				flusher.Flush()
			}
		}
	}
}

func joinRoom(store Storage, auth Authenticator, rooms Rooms) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sessionID := c.QueryParam("session")
		if sessionID == "" {
			return c.String(http.StatusBadRequest, "session is required")
		}

		projectID := c.Param("projectId")
		if _, err := requireMember(c, store, projectID, userID); err != nil {
			return membershipError(c, err)
		}

		if !rooms.Join(sessionID, projectID) {
			return c.String(http.StatusNotFound, "unknown session")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func leaveRoom(auth Authenticator, rooms Rooms) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization")); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sessionID := c.QueryParam("session")
		if sessionID == "" {
			return c.String(http.StatusBadRequest, "session is required")
		}
		rooms.Leave(sessionID, c.Param("projectId"))
		return c.NoContent(http.StatusNoContent)
	}
}
