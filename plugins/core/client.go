package core

import (
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/va6996/mensaman/tools"
)

// Client manages the core set of tools
type Client struct {
	DateTool *DateTool
}

// NewClient initializes the core plugin and registers its tools.
// now and loc may be nil for the wall clock and the process time zone.
func NewClient(now func() time.Time, loc *time.Location, gk *genkit.Genkit, registry *tools.Registry) *Client {
	return &Client{
		DateTool: NewDateTool(now, loc, gk, registry),
	}
}
