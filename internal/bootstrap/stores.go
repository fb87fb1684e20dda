package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/scriba-app/transcribe-backend/internal/recording"
	"github.com/scriba-app/transcribe-backend/internal/reference"
)

func ProvideRecordingStore(db *gorm.DB) *recording.Store {
	return recording.NewStore(db)
}

func ProvideReferenceStore(redisClient *redis.Client) *reference.Store {
	return reference.NewStore(redisClient)
}

func RunMigrations(recordingStore *recording.Store) error {
	return recordingStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideRecordingStore,
		ProvideReferenceStore,
	),
	fx.Invoke(RunMigrations),
)
