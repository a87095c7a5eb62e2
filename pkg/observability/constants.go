package observability

const (
	AttrSearchType      = "search.type"
	AttrSearchResults   = "search.results"
	AttrLLMProvider     = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrResult          = "result"
	AttrHTTPMethod      = "http.method"
	AttrHTTPRoute       = "http.route"
	AttrErrorType       = "error.type"

	SpanHTTPRequest = "http.request"
	SpanSearch      = "search.execute"
	SpanLLMRequest  = "llm.request"
	SpanEmbedding   = "embedding.batch"
	SpanIndexRun    = "index.run"

	DefaultServiceName = "noteum"
)
