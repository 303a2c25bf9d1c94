package gladtex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Pandoc math style tags.
const (
	pandocInlineMath  = "InlineMath"
	pandocDisplayMath = "DisplayMath"
)

// astNode is one tagged variant of the Pandoc JSON AST. Every element
// inside "blocks" and "meta" is an object with a tag "t" and an optional
// content "c"; the content itself is an arbitrary nesting of variants,
// arrays and primitives.
type astNode struct {
	T string          `json:"t"`
	C json.RawMessage `json:"c,omitempty"`
}

// PandocAST is a parsed Pandoc JSON document. Only Math elements are
// interpreted; everything else round-trips untouched, so the output stays
// a valid input for pandoc's --filter machinery.
type PandocAST struct {
	doc map[string]json.RawMessage
}

// ParsePandocAST decodes a Pandoc JSON document. The document must have a
// "blocks" array, which every pandoc -t json output has.
func ParsePandocAST(data []byte) (*PandocAST, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPandocAST, err)
	}
	if _, ok := doc["blocks"]; !ok {
		return nil, fmt.Errorf("%w: missing blocks array", ErrPandocAST)
	}
	return &PandocAST{doc: doc}, nil
}

// Formulas returns all Math elements of the document in reading order.
// Pandoc strips source locations, so the positions are nil.
func (a *PandocAST) Formulas() ([]Formula, error) {
	var formulas []Formula
	_, err := transformMath(a.doc["blocks"], func(display bool, formula string) (json.RawMessage, error) {
		formulas = append(formulas, Formula{Display: display, Text: formula})
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return formulas, nil
}

// ReplaceFormulas rewrites every Math element into a RawInline html
// element carrying the formatted image markup. The converter must have
// processed all formulas of the document beforehand.
//
// The replacement cannot stay format-independent: the baseline correction
// is a CSS vertical-align instruction the Pandoc AST has no node for.
func (a *PandocAST) ReplaceFormulas(conv *CachedConverter, f *HTMLImageFormatter) error {
	blocks, err := transformMath(a.doc["blocks"], func(display bool, formula string) (json.RawMessage, error) {
		res, err := conv.ResultFor(formula, display)
		if err != nil {
			return nil, fmt.Errorf("formula %q: %w", formula, err)
		}
		content, err := json.Marshal([2]string{"html", f.Format(res)})
		if err != nil {
			return nil, err
		}
		return json.Marshal(astNode{T: "RawInline", C: content})
	})
	if err != nil {
		return err
	}
	a.doc["blocks"] = blocks
	return nil
}

// Encode writes the document back as compact JSON.
func (a *PandocAST) Encode(w io.Writer) error {
	data, err := json.Marshal(a.doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPandocAST, err)
	}
	_, err = w.Write(data)
	return err
}

// transformMath folds over an AST value and passes every Math element to
// fn, depth-first in document order. A non-nil return from fn replaces the
// node; nil keeps it. The rewritten value is returned re-encoded.
func transformMath(raw json.RawMessage, fn func(display bool, formula string) (json.RawMessage, error)) (json.RawMessage, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return raw, nil
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPandocAST, err)
		}
		for i, item := range items {
			replaced, err := transformMath(item, fn)
			if err != nil {
				return nil, err
			}
			items[i] = replaced
		}
		return json.Marshal(items)
	case '{':
		// objects without a tag (e.g. citations) pass through untouched
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPandocAST, err)
		}
		tagRaw, tagged := obj["t"]
		if !tagged {
			return raw, nil
		}
		var tag string
		if err := json.Unmarshal(tagRaw, &tag); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPandocAST, err)
		}
		if tag == "Math" {
			display, formula, err := decodeMath(obj["c"])
			if err != nil {
				return nil, err
			}
			replacement, err := fn(display, formula)
			if err != nil {
				return nil, err
			}
			if replacement != nil {
				return replacement, nil
			}
			return raw, nil
		}
		content, ok := obj["c"]
		if !ok {
			return raw, nil
		}
		replaced, err := transformMath(content, fn)
		if err != nil {
			return nil, err
		}
		obj["c"] = replaced
		return json.Marshal(obj)
	default:
		// strings, numbers, booleans carry no formulas
		return raw, nil
	}
}

// decodeMath destructures the content of a Math element: a two-element
// array of the style variant and the formula text.
func decodeMath(content json.RawMessage) (display bool, formula string, err error) {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(content, &parts); err != nil {
		return false, "", fmt.Errorf("%w: malformed Math content: %v", ErrPandocAST, err)
	}
	var style astNode
	if err := json.Unmarshal(parts[0], &style); err != nil {
		return false, "", fmt.Errorf("%w: malformed Math style: %v", ErrPandocAST, err)
	}
	switch style.T {
	case pandocInlineMath:
		display = false
	case pandocDisplayMath:
		display = true
	default:
		return false, "", fmt.Errorf("%w: unknown formula formatting %q", ErrPandocAST, style.T)
	}
	if err := json.Unmarshal(parts[1], &formula); err != nil {
		return false, "", fmt.Errorf("%w: malformed Math content: %v", ErrPandocAST, err)
	}
	return display, formula, nil
}
