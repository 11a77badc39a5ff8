// Package extract pulls machine-readable JSON payloads out of free-form
// model answers.
package extract

import (
	"encoding/json"
	"regexp"

	"github.com/kaptinlin/jsonrepair"
)

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFence  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// Option configures JSONBlocks.
type Option func(*extractor)

// WithRepair gives blocks that fail strict JSON parsing a second chance
// through jsonrepair, which fixes the usual model slop (single quotes,
// unquoted keys, trailing commas). Off by default: strict mode discards
// anything encoding/json rejects.
func WithRepair() Option {
	return func(e *extractor) { e.repair = true }
}

type extractor struct {
	repair bool
}

// JSONBlocks scans text for fenced code blocks containing valid JSON. Blocks
// explicitly tagged ```json are tried first; only when none of those parse
// does a second pass consider every fenced block regardless of tag. Blocks
// that fail to parse are discarded silently.
//
// The result is nil when no valid block was found, the decoded value itself
// when exactly one was, and a []any with all of them in order of appearance
// otherwise.
func JSONBlocks(text string, opts ...Option) any {
	e := &extractor{}
	for _, opt := range opts {
		opt(e)
	}

	blocks := e.collect(jsonFence, text)
	if len(blocks) == 0 {
		blocks = e.collect(anyFence, text)
	}

	switch len(blocks) {
	case 0:
		return nil
	case 1:
		return blocks[0]
	default:
		return blocks
	}
}

func (e *extractor) collect(fence *regexp.Regexp, text string) []any {
	var out []any
	for _, m := range fence.FindAllStringSubmatch(text, -1) {
		raw := m[1]

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			if !e.repair {
				continue
			}
			repaired, rerr := jsonrepair.JSONRepair(raw)
			if rerr != nil {
				continue
			}
			if json.Unmarshal([]byte(repaired), &v) != nil {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
