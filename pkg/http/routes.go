package http

const (
	Ping    = "Ping"
	Version = "Version"

	// Image data.
	GetImage = "GetImage"

	// Cache management.
	ImageStatus           = "ImageStatus"
	ListCachedImages      = "ListCachedImages"
	DeleteCachedImage     = "DeleteCachedImage"
	DeleteAllCachedImages = "DeleteAllCachedImages"

	// Prefetch queue management.
	QueueImage            = "QueueImage"
	ListQueuedImages      = "ListQueuedImages"
	DeleteQueuedImage     = "DeleteQueuedImage"
	DeleteAllQueuedImages = "DeleteAllQueuedImages"
)
