package httpapi

import (
	"net/http"
	"strings"

	"github.com/vmthunder/volt/internal/httpapi/clientip"
	"github.com/vmthunder/volt/internal/topology"
)

// registerBody is the wire body accepted by POST /volumes/{volume_id}/{peer_id}.
type registerBody struct {
	Host string `json:"host"`
	Port string `json:"port"`
	IQN  string `json:"iqn"`
	Lun  string `json:"lun"`
}

// NewRoutes builds the Router for the five volume-topology endpoints,
// backed by engine. resolver derives the calling host for query and
// heartbeat; callers normally pass clientip.RemoteAddr{}.
func NewRoutes(engine *topology.Engine, resolver clientip.Resolver) *Router {
	r := New(nil)

	r.Handle(http.MethodGet, "/volumes", func(c *Context) {
		c.JSON(http.StatusOK, engine.List())
	})

	r.Handle(http.MethodGet, "/volumes/query/{volume_id}", func(c *Context) {
		imageID := c.Param("volume_id")
		if err := validateImageID(imageID); err != nil {
			writeError(c, err)
			return
		}
		host, err := resolver.ClientHost(c.Request())
		if err != nil {
			writeError(c, topology.NewInvalidParameter("host", "", err.Error()))
			return
		}
		c.JSON(http.StatusOK, engine.Query(imageID, host))
	})

	r.Handle(http.MethodPost, "/volumes/{volume_id}/{peer_id}", func(c *Context) {
		imageID := c.Param("volume_id")
		peerID := c.Param("peer_id")
		if err := validateImageID(imageID); err != nil {
			writeError(c, err)
			return
		}
		var body registerBody
		if err := c.DecodeJSON(&body); err != nil {
			writeError(c, topology.NewInvalidParameter("body", "", "malformed JSON body"))
			return
		}
		identity, err := engine.Register(imageID, peerID, topology.Identity{
			Host: body.Host,
			Port: body.Port,
			IQN:  body.IQN,
			Lun:  body.Lun,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, identity)
	})

	r.Handle(http.MethodDelete, "/volumes/{volume_id}/{peer_id}", func(c *Context) {
		imageID := c.Param("volume_id")
		peerID := c.Param("peer_id")
		if err := engine.Remove(imageID, peerID); err != nil {
			writeError(c, err)
			return
		}
		c.NoContent(http.StatusNoContent)
	})

	r.Handle(http.MethodPut, "/members/heartbeat", func(c *Context) {
		host, err := resolver.ClientHost(c.Request())
		if err != nil {
			writeError(c, topology.NewInvalidParameter("host", "", err.Error()))
			return
		}
		c.JSON(http.StatusOK, engine.Heartbeat(host))
	})

	return r
}

// validateImageID rejects image ids containing a colon: peer ids are
// formed as "host:image_id" and split on the first colon, so a colon in
// the image id would make that split ambiguous.
func validateImageID(imageID string) error {
	if imageID == "" {
		return topology.NewInvalidParameter("volume_id", imageID, "volume_id must not be empty")
	}
	if strings.Contains(imageID, ":") {
		return topology.NewInvalidParameter("volume_id", imageID, "volume_id must not contain ':'")
	}
	return nil
}
