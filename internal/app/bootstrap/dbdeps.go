// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/notify"
	adminstore "github.com/dalemusser/studytrack/internal/app/store/admins"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	preaddedstore "github.com/dalemusser/studytrack/internal/app/store/preadded"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// ConnectDB builds the whole graph once; the hooks and BuildHandler
// share it.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Requests      *requeststore.Store
	StudyIDs      *studyidstore.Store
	Users         *userstore.Store
	PreAdded      *preaddedstore.Store
	Admins        *adminstore.Store
	Notifications *notificationstore.Store

	Notifier   *notify.Notifier
	Controller *lifecycle.Controller
	Reconciler *lifecycle.Reconciler
	Watcher    *requeststore.Watcher
}
