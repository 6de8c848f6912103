package cache

import (
	"time"

	"github.com/go-kit/kit/log"
)

// Pruner brings the cache back under its size limit by deleting the
// least recently accessed entries first. Deleting a bit more than
// strictly necessary (ExtraFraction of MaxSize) keeps it from
// running again the moment one image lands.
type Pruner struct {
	Driver        Driver
	MaxSize       int64
	ExtraFraction float64
	Logger        log.Logger
}

// Prune deletes least recently accessed entries until total size is
// back under MaxSize. Entries that vanish between listing and deletion
// were deleted by someone else and count as freed.
func (p *Pruner) Prune() (deleted int, freed int64, err error) {
	images, err := p.Driver.GetCachedImages()
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, img := range images {
		total += img.Size
	}
	cacheSize.Set(float64(total))
	if total <= p.MaxSize {
		p.Logger.Log("total", total, "max", p.MaxSize, "pruned", "false")
		return 0, 0, nil
	}
	toFree := total - p.MaxSize + int64(float64(p.MaxSize)*p.ExtraFraction)
	p.Logger.Log("total", total, "max", p.MaxSize, "to_free", toFree)

	// The listing is most recently accessed first, so evict from the
	// tail.
	for i := len(images) - 1; i >= 0 && freed < toFree; i-- {
		img := images[i]
		if err := p.Driver.DeleteCachedImage(img.ID); err != nil {
			p.Logger.Log("image", img.ID, "err", err)
			continue
		}
		p.Logger.Log("pruned", img.ID, "size", img.Size, "last_accessed", img.LastAccessed.Format(time.RFC3339))
		deleted++
		freed += img.Size
	}
	cacheSize.Set(float64(total - freed))
	p.Logger.Log("deleted", deleted, "freed", freed)
	return deleted, freed, nil
}

// Run prunes on every tick, until the channel closes.
func (p *Pruner) Run(tick <-chan time.Time) {
	for range tick {
		if _, _, err := p.Prune(); err != nil {
			p.Logger.Log("err", err)
		}
	}
}
