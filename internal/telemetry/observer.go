package telemetry

import (
	"context"
	"log/slog"

	"github.com/shaiso/Treeflow/internal/node"
)

// LogObserver пишет события узлов в slog.
//
// Смены состояний и события queue пишутся на уровне DEBUG,
// переходы в failed — на уровне WARN.
type LogObserver struct {
	Logger *slog.Logger

	// Context — события ctx-read/ctx-write.
	// По умолчанию не логируются: их слишком много.
	Context bool
}

// NewLogObserver создаёт наблюдатель поверх logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

// OnEvent реализует node.Observer.
func (o *LogObserver) OnEvent(e node.Event) {
	ctx := context.Background()
	logger := o.Logger

	if e.Node != nil {
		b := e.Node.Common()
		logger = WithNode(logger, b.Name(), b.Kind())
	}

	switch e.Type {
	case node.EventState:
		if e.State == node.StateFailed {
			logger.WarnContext(ctx, "node failed", "from", e.Prev.String(), "error", e.Err)
			return
		}
		logger.DebugContext(ctx, "node state changed", "from", e.Prev.String(), "to", e.State.String())

	case node.EventStart, node.EventEnd:
		logger.DebugContext(ctx, "queue "+string(e.Type),
			"state", e.State.String(),
			"total", e.Stats.Total,
			"complete", e.Stats.Complete,
		)

	case node.EventJobStart, node.EventJobEnd:
		child := ""
		if e.Child != nil {
			child = e.Child.Common().Name()
		}
		logger.DebugContext(ctx, "queue "+string(e.Type),
			"child", child,
			"index", e.Index,
			"active", e.Stats.Active,
		)

	case node.EventCtxRead, node.EventCtxWrite:
		if o.Context {
			logger.DebugContext(ctx, string(e.Type), "path", e.Path)
		}
	}
}
