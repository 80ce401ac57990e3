package queue

import (
	"context"
	"fmt"

	"github.com/melodex/melodex/internal/domain"
)

// LocalInvoker runs scheduled targets in-process. The server uses it behind
// its scheduler endpoint; deployments with a separate scheduler binary use the
// HTTP invoker instead.
type LocalInvoker struct {
	Dispatcher  *Dispatcher
	Maintenance *Maintenance
	Monitor     *Monitor
	Registry    *Registry
}

// Invoke runs one target: the engine jobs by name, anything else through the
// handler registry with empty metadata.
func (l *LocalInvoker) Invoke(ctx context.Context, target string) error {
	switch target {
	case "worker":
		_, err := l.Dispatcher.RunTickOnce(ctx)
		return err
	case "maintenance":
		_, err := l.Maintenance.RunOnce(ctx)
		return err
	case "monitor":
		_, _, err := l.Monitor.RunOnce(ctx)
		return err
	default:
		handler, ok := l.Registry.Resolve(target)
		if !ok {
			return fmt.Errorf("no handler registered for target %q", target)
		}
		_, err := handler.Handle(ctx, domain.Metadata{})
		return err
	}
}
