package document

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxExpandedNodes bounds alias expansion so that a small file full of
// nested aliases cannot blow up into an enormous tree.
const maxExpandedNodes = 1 << 22

const (
	mergeTag     = "!!merge"
	strTag       = "!!str"
	floatTag     = "!!float"
	timestampTag = "!!timestamp"
)

// yaml11Bools are the plain scalars YAML 1.1 reads as booleans on top of
// the true/false spellings yaml.v3 already resolves.
var yaml11Bools = map[string]bool{
	"yes": true, "Yes": true, "YES": true,
	"on": true, "On": true, "ON": true,
	"no": false, "No": false, "NO": false,
	"off": false, "Off": false, "OFF": false,
}

// decimalInt matches plain decimal integers, which yaml.v3 falls back to
// reading as floats once they overflow 64 bits.
var decimalInt = regexp.MustCompile(`^[-+]?[1-9][0-9_]*$`)

type converter struct {
	active  map[*yaml.Node]bool
	visited int
}

func (c *converter) convert(n *yaml.Node) (any, error) {
	c.visited++
	if c.visited > maxExpandedNodes {
		return nil, fmt.Errorf("%w: document expands to more than %d nodes", ErrInvalidYAML, maxExpandedNodes)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return c.convert(n.Content[0])
	case yaml.AliasNode:
		return c.alias(n)
	case yaml.ScalarNode:
		return scalar(n)
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := c.convert(child)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		return c.mapping(n)
	default:
		return nil, fmt.Errorf("%w: line %d: unexpected node kind %d", ErrInvalidYAML, n.Line, n.Kind)
	}
}

func (c *converter) alias(n *yaml.Node) (any, error) {
	target := n.Alias
	if target == nil {
		return nil, fmt.Errorf("%w: line %d: unknown anchor %q", ErrInvalidYAML, n.Line, n.Value)
	}
	if c.active[target] {
		return nil, fmt.Errorf("%w: line %d: anchor %q value contains itself", ErrInvalidYAML, n.Line, n.Value)
	}

	c.active[target] = true
	defer delete(c.active, target)

	return c.convert(target)
}

type entry struct {
	key   string
	value any
}

// mapping builds an ordered mapping. Merged entries are laid down first,
// with later merge sources before earlier ones, and explicit entries last,
// so that explicit keys and earlier sources win.
func (c *converter) mapping(n *yaml.Node) (*Mapping, error) {
	var merged, explicit []entry

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]

		if isMerge(keyNode) {
			entries, err := c.mergeSources(valueNode)
			if err != nil {
				return nil, err
			}
			merged = append(merged, entries...)
			continue
		}

		key, err := c.key(keyNode)
		if err != nil {
			return nil, err
		}
		value, err := c.convert(valueNode)
		if err != nil {
			return nil, err
		}
		explicit = append(explicit, entry{key: key, value: value})
	}

	out := NewMapping()
	for _, e := range merged {
		out.Set(e.key, e.value)
	}
	for _, e := range explicit {
		out.Set(e.key, e.value)
	}
	return out, nil
}

func (c *converter) mergeSources(n *yaml.Node) ([]entry, error) {
	var sources []*yaml.Node
	if n.Kind == yaml.SequenceNode {
		for i := len(n.Content) - 1; i >= 0; i-- {
			sources = append(sources, n.Content[i])
		}
	} else {
		sources = []*yaml.Node{n}
	}

	var entries []entry
	for _, src := range sources {
		v, err := c.convert(src)
		if err != nil {
			return nil, err
		}
		m, ok := v.(*Mapping)
		if !ok {
			return nil, fmt.Errorf("%w: line %d: merge value must be a mapping", ErrInvalidYAML, src.Line)
		}
		m.Range(func(key string, value any) bool {
			entries = append(entries, entry{key: key, value: value})
			return true
		})
	}
	return entries, nil
}

// key converts a mapping key to its JSON object key.
func (c *converter) key(n *yaml.Node) (string, error) {
	v, err := c.convert(n)
	if err != nil {
		return "", err
	}

	switch k := v.(type) {
	case string:
		return k, nil
	case nil:
		return "null", nil
	case bool:
		return strconv.FormatBool(k), nil
	case int:
		return strconv.Itoa(k), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case uint64:
		return strconv.FormatUint(k, 10), nil
	case *big.Int:
		return k.String(), nil
	case float64:
		return FormatFloat(k), nil
	default:
		return "", fmt.Errorf("%w: line %d: mapping keys must be scalars", ErrInvalidYAML, n.Line)
	}
}

func scalar(n *yaml.Node) (any, error) {
	// Timestamps have no JSON type; keep the text as written.
	if n.ShortTag() == timestampTag {
		return n.Value, nil
	}

	if n.Style == 0 {
		switch n.Tag {
		case strTag:
			if b, ok := yaml11Bools[n.Value]; ok {
				return b, nil
			}
		case floatTag:
			if i, ok := bigDecimal(n.Value); ok {
				return i, nil
			}
		}
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidYAML, n.Line, err)
	}
	return v, nil
}

// bigDecimal parses integers that do not fit in 64 bits.
func bigDecimal(s string) (*big.Int, bool) {
	if !decimalInt.MatchString(s) {
		return nil, false
	}
	return new(big.Int).SetString(strings.ReplaceAll(strings.TrimPrefix(s, "+"), "_", ""), 10)
}

func isMerge(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" && n.ShortTag() == mergeTag
}
