package inventory

import "fmt"

// =============================================================================
// ENTITY KINDS - Code prefixes per document/master kind
// =============================================================================

// Kind identifies what a generated code or document belongs to.
type Kind string

const (
	KindProduct        Kind = "product"
	KindSale           Kind = "sale"
	KindPurchase       Kind = "purchase"
	KindReconciliation Kind = "stock_recon"
)

// KindSpec describes how human-readable codes are rendered for a kind.
type KindSpec struct {
	Prefix string
	Width  int
}

var kindSpecs = map[Kind]KindSpec{
	KindProduct:        {Prefix: "PROD", Width: 5},
	KindSale:           {Prefix: "SALE", Width: 5},
	KindPurchase:       {Prefix: "PUR", Width: 5},
	KindReconciliation: {Prefix: "RECON", Width: 5},
}

// Spec returns the code spec for k.
func (k Kind) Spec() (KindSpec, bool) {
	s, ok := kindSpecs[k]
	return s, ok
}

func (k Kind) String() string { return string(k) }

// FormatCode renders seq as a code for kind, e.g. SALE00042.
func FormatCode(kind Kind, seq int64) (string, error) {
	spec, ok := kind.Spec()
	if !ok {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	return fmt.Sprintf("%s%0*d", spec.Prefix, spec.Width, seq), nil
}
