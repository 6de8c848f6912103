/*
This package implements a disk-backed cache for image payloads, shared
between any number of processes over a common directory tree.

The interface `Driver` stands in for the cache state machine; the
production implementation `FilesystemDriver` keeps every piece of state
as a file, so that API workers, the pruner and the cleaner can
coordinate using nothing but exclusive creates, atomic renames and
deletes. A file sitting directly under the cache directory is a
complete, valid entry; everything in flight or dead lives in a
subdirectory (incomplete/, invalid/, queue/).

`TeeToCache` is for filling the cache as a side effect of serving a
miss: it hands origin bytes to the caller unmodified while writing them
into a session that is committed only when the stream finishes intact.

The `Prefetcher` is for continually draining the on-disk queue of
images that should be cached ahead of demand; `Pruner` and `Cleaner`
are the periodic jobs that keep the tree within its size limit and
free of debris.
*/
package cache
