package llm

import "errors"

// ErrLLMOutputInvalid wraps failures to extract or parse the model's JSON
// response (missing text blocks, unparseable JSON after fence-stripping),
// classified per spec §7 rule 3 the same as a decode/schema error.
var ErrLLMOutputInvalid = errors.New("llm output invalid")
