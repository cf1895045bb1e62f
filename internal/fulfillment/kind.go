package fulfillment

import (
	"fmt"
	"strings"
)

// Kind selects the pipeline shape for a transaction.
type Kind string

const (
	// KindItem lists a dataset on the marketplace.
	KindItem Kind = "item"
	// KindOrder submits an encrypted query against a listed dataset.
	KindOrder Kind = "order"
)

// Kinds returns the known pipeline kinds in display order.
func Kinds() []Kind {
	return []Kind{KindItem, KindOrder}
}

// ParseKind converts user input into a Kind.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindItem, KindOrder:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindItem, KindOrder:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// Title is the heading shown for a transaction of this kind.
func (k Kind) Title() string {
	switch k {
	case KindItem:
		return "Dataset listing"
	case KindOrder:
		return "Query order"
	default:
		return string(k)
	}
}
