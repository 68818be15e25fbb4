package keys

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

// RegistryCache es un read-through de la Public Key Registry.
// Sólo cachea hits de claves activas; misses y claves retiring/revoked van
// siempre al store. Misses concurrentes para la misma key se colapsan con
// singleflight.
//
// Invalidate sólo alcanza al proceso local: una revocación hecha por otro
// proceso sobre una clave activa tarda hasta ttl en verse acá.
type RegistryCache struct {
	repo repository.KeyRepository
	c    *gocache.Cache
	sf   singleflight.Group
}

// NewRegistryCache crea el cache. ttl <= 0 desactiva el cacheo.
func NewRegistryCache(repo repository.KeyRepository, ttl time.Duration) *RegistryCache {
	var c *gocache.Cache
	if ttl > 0 {
		c = gocache.New(ttl, 2*ttl)
	}
	return &RegistryCache{repo: repo, c: c}
}

func hashKey(hash string) string { return "h:" + hash }

func activeKey(accountID string, alg types.Algorithm) string {
	return "a:" + accountID + ":" + string(alg)
}

// ByHash resuelve una entrada por hash de clave pública.
func (rc *RegistryCache) ByHash(ctx context.Context, hash string) (*repository.PublicKeyEntry, error) {
	k := hashKey(hash)
	if rc.c != nil {
		if v, ok := rc.c.Get(k); ok {
			e := *v.(*repository.PublicKeyEntry)
			return &e, nil
		}
	}
	v, err, _ := rc.sf.Do(k, func() (interface{}, error) {
		e, err := rc.repo.FindByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if rc.c != nil && e.Status == repository.KeyActive {
			rc.c.SetDefault(k, e)
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e := *v.(*repository.PublicKeyEntry)
	return &e, nil
}

// ActiveKey resuelve la clave activa de (cuenta, algoritmo).
func (rc *RegistryCache) ActiveKey(ctx context.Context, accountID string, alg types.Algorithm) (*repository.AccountKey, error) {
	k := activeKey(accountID, alg)
	if rc.c != nil {
		if v, ok := rc.c.Get(k); ok {
			ak := *v.(*repository.AccountKey)
			return &ak, nil
		}
	}
	v, err, _ := rc.sf.Do(k, func() (interface{}, error) {
		ak, err := rc.repo.FindActiveKey(ctx, accountID, alg)
		if err != nil {
			return nil, err
		}
		if rc.c != nil {
			rc.c.SetDefault(k, ak)
		}
		return ak, nil
	})
	if err != nil {
		return nil, err
	}
	ak := *v.(*repository.AccountKey)
	return &ak, nil
}

// Invalidate descarta lo cacheado para la cuenta/algoritmo y el hash dados.
func (rc *RegistryCache) Invalidate(accountID string, alg types.Algorithm, hashes ...string) {
	if rc.c == nil {
		return
	}
	rc.c.Delete(activeKey(accountID, alg))
	for _, h := range hashes {
		rc.c.Delete(hashKey(h))
	}
}

// Flush vacía el cache completo.
func (rc *RegistryCache) Flush() {
	if rc.c != nil {
		rc.c.Flush()
	}
}
