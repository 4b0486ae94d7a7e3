package evaluation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/segbench/pkg/common"
)

var errHintShape = errors.New("unsupported hint shape")

// ParseHint decodes a segmentation endpoint answer. Exactly two shapes are
// accepted: an array of strings, returned as words, or an array of objects
// with a non-empty "text" and an optional "levelId", returned as detailed
// words. Anything else, including arrays mixing both, is rejected.
func ParseHint(raw json.RawMessage) ([]string, []common.DetailedWord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		return nil, nil, fmt.Errorf("%w: not an array", errHintShape)
	}

	var (
		words    []string
		detailed []common.DetailedWord
	)
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 {
			return nil, nil, fmt.Errorf("%w: element %d empty", errHintShape, i)
		}

		switch elem[0] {
		case '"':
			if detailed != nil {
				return nil, nil, fmt.Errorf("%w: element %d mixes strings and objects", errHintShape, i)
			}
			var w string
			if err := json.Unmarshal(elem, &w); err != nil {
				return nil, nil, fmt.Errorf("%w: element %d: %v", errHintShape, i, err)
			}
			words = append(words, w)
		case '{':
			if words != nil {
				return nil, nil, fmt.Errorf("%w: element %d mixes strings and objects", errHintShape, i)
			}
			var w struct {
				Text    *string `json:"text"`
				LevelID any     `json:"levelId"`
			}
			if err := json.Unmarshal(elem, &w); err != nil {
				return nil, nil, fmt.Errorf("%w: element %d: %v", errHintShape, i, err)
			}
			if w.Text == nil || *w.Text == "" {
				return nil, nil, fmt.Errorf("%w: element %d has no text", errHintShape, i)
			}
			d := common.DetailedWord{Text: *w.Text}
			switch id := w.LevelID.(type) {
			case nil:
			case string:
				d.LevelID = id
			case float64:
				d.LevelID = fmt.Sprint(id)
			default:
				return nil, nil, fmt.Errorf("%w: element %d has a non scalar levelId", errHintShape, i)
			}
			detailed = append(detailed, d)
		default:
			return nil, nil, fmt.Errorf("%w: element %d is neither string nor object", errHintShape, i)
		}
	}

	if words == nil && detailed == nil {
		words = []string{}
	}
	return words, detailed, nil
}
