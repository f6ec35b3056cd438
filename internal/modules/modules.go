// AngelaMos | 2026
// modules.go

// Package modules is the fixed discovery list of capability modules.
package modules

import (
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/modules/activitylog"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/modules/articles"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/modules/connections"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/modules/settings"
)

// All returns every built-in module in load order. Adding a module means
// adding its constructor here.
func All() []module.Entry {
	return []module.Entry{
		{ID: articles.ID, New: articles.New},
		{ID: connections.ID, New: connections.New},
		{ID: settings.ID, New: settings.New},
		{ID: activitylog.ID, New: activitylog.New},
	}
}
