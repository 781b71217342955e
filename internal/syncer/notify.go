package syncer

import "github.com/starford/playbooksync/internal/models"

// Notifier receives run lifecycle events. Implementations must not block.
type Notifier interface {
	RunStarted(run models.SyncRun)
	RunFinished(run models.SyncRun)
	DocumentPatched(runID, path, strategy string)
	DocumentCreated(runID, path string)
}

type nopNotifier struct{}

func (nopNotifier) RunStarted(models.SyncRun)              {}
func (nopNotifier) RunFinished(models.SyncRun)             {}
func (nopNotifier) DocumentPatched(string, string, string) {}
func (nopNotifier) DocumentCreated(string, string)         {}
