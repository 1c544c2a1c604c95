package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

var allowedResourceKeys = map[string]bool{
	"table":        true,
	"primary_keys": true,
	"columns":      true,
	"relations":    true,
	"scope":        true,
	"delimiter":    true,
	"matching":     true,
	"limit":        true,
	"filters":      true,
	"sorts":        true,
	"searches":     true,
}

var allowedRelationKeys = map[string]bool{
	"type":  true,
	"table": true,
	"fk":    true,
	"pk":    true,
	"where": true,
}

var allowedLimitKeys = map[string]bool{
	"default": true,
	"max":     true,
}

var allowedFilterKeys = map[string]bool{
	"name":          true,
	"alias":         true,
	"label":         true,
	"hint":          true,
	"type":          true,
	"operator":      true,
	"clauses":       true,
	"multiple":      true,
	"presence":      true,
	"full_text":     true,
	"enum":          true,
	"options":       true,
	"options_query": true,
	"default":       true,
	"default_from":  true,
	"rule":          true,
	"roles":         true,
	"meta":          true,
}

var allowedOptionKeys = map[string]bool{
	"value": true,
	"label": true,
}

var allowedRuleKeys = map[string]bool{
	"min":     true,
	"max":     true,
	"pattern": true,
	"one_of":  true,
}

var allowedSortKeys = map[string]bool{
	"name":    true,
	"alias":   true,
	"label":   true,
	"hint":    true,
	"only":    true,
	"invert":  true,
	"default": true,
	"roles":   true,
	"meta":    true,
}

var allowedSearchKeys = map[string]bool{
	"name":      true,
	"alias":     true,
	"label":     true,
	"hint":      true,
	"boolean":   true,
	"full_text": true,
	"roles":     true,
	"meta":      true,
}

var allowedRelationTypes = map[string]bool{
	"belongs_to": true,
	"has_one":    true,
}

// childContext maps (context, key) to the context of the value under key.
// Contexts not listed keep no key restrictions (meta, default values).
var childContext = map[string]map[string]string{
	"resource": {
		"relations": "relations-map",
		"limit":     "limit",
		"filters":   "filters-seq",
		"sorts":     "sorts-seq",
		"searches":  "searches-seq",
	},
	"filter": {
		"options": "options-seq",
		"rule":    "rule",
	},
}

var seqItemContext = map[string]string{
	"filters-seq":  "filter",
	"sorts-seq":    "sort",
	"searches-seq": "search",
	"options-seq":  "option",
}

func allowedKeysFor(context string) map[string]bool {
	switch context {
	case "resource":
		return allowedResourceKeys
	case "relation":
		return allowedRelationKeys
	case "limit":
		return allowedLimitKeys
	case "filter":
		return allowedFilterKeys
	case "option":
		return allowedOptionKeys
	case "rule":
		return allowedRuleKeys
	case "sort":
		return allowedSortKeys
	case "search":
		return allowedSearchKeys
	}
	return nil
}

func validateYAMLNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateYAMLNode(child, "resource"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		if context == "free" {
			return nil
		}
		allowedKeys := allowedKeysFor(context)
		for i := 0; i < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			key := keyNode.Value

			if allowedKeys != nil && !allowedKeys[key] {
				return fmt.Errorf("line %d: unknown key '%s' in %s", keyNode.Line, key, context)
			}
			if context == "relation" && key == "type" && !allowedRelationTypes[valNode.Value] {
				return fmt.Errorf("line %d: unknown relation type '%s'", valNode.Line, valNode.Value)
			}

			nextContext := "free"
			if context == "relations-map" {
				nextContext = "relation"
			} else if next, ok := childContext[context][key]; ok {
				nextContext = next
			}
			if err := validateYAMLNode(valNode, nextContext); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		itemContext, ok := seqItemContext[context]
		if !ok {
			itemContext = "free"
		}
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode && itemContext != "free" && itemContext != "option" {
				return fmt.Errorf("line %d: %s entries must be mappings", item.Line, itemContext)
			}
			if err := validateYAMLNode(item, itemContext); err != nil {
				return err
			}
		}

	case yaml.ScalarNode:
		// scalars carry no keys
	}

	return nil
}
