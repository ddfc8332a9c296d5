package enums

import "slices"

// DocumentType identifies the commercial document family a number belongs to.
type DocumentType string

const (
	DocumentTypeQuote      DocumentType = "QUOTE"
	DocumentTypeInvoice    DocumentType = "INVOICE"
	DocumentTypeCreditNote DocumentType = "CREDIT_NOTE"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeQuote,
	DocumentTypeInvoice,
	DocumentTypeCreditNote,
}

// String implements fmt.Stringer.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DocumentType.
func (d DocumentType) IsValid() bool {
	return slices.Contains(validDocumentTypes, d)
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	return parse(validDocumentTypes, value, "document type")
}

// DocumentTypes returns every known document type.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(validDocumentTypes))
	copy(out, validDocumentTypes)
	return out
}
