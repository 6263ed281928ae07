package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"zonecore/pkg/domain"
)

// Consumer receives change notifications after committed mutations. Renderers
// and UI panels implement it to update incrementally instead of rebuilding.
//
// CellsChanged delivers the affected cells and, when every affected cell now
// holds the same region, that region id. A nil cell slice means "unknown or
// many, do a full refresh"; a nil region means the new assignments are mixed.
type Consumer interface {
	CellsChanged(workspace, surface string, cells []domain.Cell, region *domain.RegionID)
	RegionsChanged(workspace string, event domain.RegionEvent)
	GridChanged(workspace string)
}

// Notifier fans change notifications out to registered consumers. A failing
// consumer is isolated: its panic is recovered and logged so a rendering bug
// can neither corrupt engine state nor starve the remaining consumers.
type Notifier struct {
	consumers []Consumer
	log       zerolog.Logger
}

// NewNotifier constructs an empty notifier logging through the given logger.
func NewNotifier(log zerolog.Logger) *Notifier {
	return &Notifier{log: log}
}

// Register adds a consumer. Registration is expected to happen during wiring,
// before the engine starts processing actions.
func (n *Notifier) Register(c Consumer) {
	n.consumers = append(n.consumers, c)
}

func (n *Notifier) guarded(consumer string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn().
				Str("consumer", consumer).
				Str("panic", fmt.Sprint(r)).
				Msg("change consumer failed; notification dropped")
		}
	}()
	fn()
}

func (n *Notifier) cellsChanged(workspace, surface string, cells []domain.Cell, region *domain.RegionID) {
	if n == nil {
		return
	}
	for _, c := range n.consumers {
		c := c
		n.guarded(fmt.Sprintf("%T", c), func() {
			c.CellsChanged(workspace, surface, cells, region)
		})
	}
}

func (n *Notifier) regionsChanged(workspace string, event domain.RegionEvent) {
	if n == nil {
		return
	}
	for _, c := range n.consumers {
		c := c
		n.guarded(fmt.Sprintf("%T", c), func() {
			c.RegionsChanged(workspace, event)
		})
	}
}

func (n *Notifier) gridChanged(workspace string) {
	if n == nil {
		return
	}
	for _, c := range n.consumers {
		c := c
		n.guarded(fmt.Sprintf("%T", c), func() {
			c.GridChanged(workspace)
		})
	}
}
