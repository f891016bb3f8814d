package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AsyncCacheSet actualiza caché en background sin bloquear
func AsyncCacheSet(cache Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		// Contexto propio: la petición original puede haber terminado ya.
		cacheCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		if err := cache.Set(cacheCtx, key, value, ttl); err != nil {
			log.Warn("Cache update failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// AsyncCacheDelete elimina de caché en background
func AsyncCacheDelete(cache Cache, key string, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		if err := cache.Delete(cacheCtx, key); err != nil {
			log.Warn("Cache deletion failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// Generation devuelve la generación vigente guardada en genKey, creándola si
// no existe. Se usa para invalidar de golpe todas las claves que la incluyen.
func Generation(ctx context.Context, cache Cache, genKey string) string {
	if cache == nil {
		return ""
	}
	var gen string
	if hit, err := cache.Get(ctx, genKey, &gen); err == nil && hit {
		return gen
	}
	return Bump(ctx, cache, genKey)
}

// Bump cambia la generación de genKey.
func Bump(ctx context.Context, cache Cache, genKey string) string {
	gen := uuid.NewString()
	if cache != nil {
		_ = cache.Set(ctx, genKey, gen, 0)
	}
	return gen
}
