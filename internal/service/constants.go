package service

const (
	// ResultMIMEType is what every provider is asked to return.
	ResultMIMEType = "image/png"

	removeBackgroundInstruction = "remove the background of this image and make the background transparent. " +
		"Do not alter the foreground subject. Output only the image with a transparent background."

	cacheKeyPrefix = "bgremover:"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusCacheHit = "cache_hit"
)
