package analysis

// state names the pipeline step a run is in; they appear in logs only
type state string

const (
	stateReceived         state = "received"
	stateExtractingText   state = "extracting_text"
	stateOCRFallback      state = "ocr_fallback"
	stateChunking         state = "chunking"
	stateExtractingFields state = "extracting_fields"
	stateSynthesizing     state = "synthesizing"
	statePostProcessing   state = "post_processing"
	stateCaching          state = "caching"
	stateDone             state = "done"
	stateFailed           state = "failed"
)
