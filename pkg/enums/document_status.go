package enums

import "slices"

// DocumentStatus is the lifecycle state of a quote, invoice or credit note.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusSent      DocumentStatus = "SENT"
	DocumentStatusAccepted  DocumentStatus = "ACCEPTED"
	DocumentStatusRefused   DocumentStatus = "REFUSED"
	DocumentStatusPaid      DocumentStatus = "PAID"
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusDraft,
	DocumentStatusSent,
	DocumentStatusAccepted,
	DocumentStatusRefused,
	DocumentStatusPaid,
	DocumentStatusCancelled,
}

// String implements fmt.Stringer.
func (s DocumentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DocumentStatus.
func (s DocumentStatus) IsValid() bool {
	return slices.Contains(validDocumentStatuses, s)
}

// ParseDocumentStatus converts raw input into a DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	return parse(validDocumentStatuses, value, "document status")
}

type statusEdge struct {
	from DocumentStatus
	to   DocumentStatus
}

// documentTransitions is the full set of allowed lifecycle edges per document
// type. Anything absent is rejected.
var documentTransitions = map[DocumentType]map[statusEdge]struct{}{
	DocumentTypeQuote: edges(
		statusEdge{DocumentStatusDraft, DocumentStatusSent},
		statusEdge{DocumentStatusSent, DocumentStatusAccepted},
		statusEdge{DocumentStatusSent, DocumentStatusRefused},
		statusEdge{DocumentStatusDraft, DocumentStatusCancelled},
		statusEdge{DocumentStatusSent, DocumentStatusCancelled},
		statusEdge{DocumentStatusAccepted, DocumentStatusCancelled},
	),
	DocumentTypeInvoice: edges(
		statusEdge{DocumentStatusDraft, DocumentStatusSent},
		statusEdge{DocumentStatusDraft, DocumentStatusPaid},
		statusEdge{DocumentStatusSent, DocumentStatusPaid},
		statusEdge{DocumentStatusDraft, DocumentStatusCancelled},
		statusEdge{DocumentStatusSent, DocumentStatusCancelled},
	),
	DocumentTypeCreditNote: edges(
		statusEdge{DocumentStatusDraft, DocumentStatusSent},
		statusEdge{DocumentStatusDraft, DocumentStatusPaid},
		statusEdge{DocumentStatusSent, DocumentStatusPaid},
		statusEdge{DocumentStatusDraft, DocumentStatusCancelled},
		statusEdge{DocumentStatusSent, DocumentStatusCancelled},
	),
}

func edges(list ...statusEdge) map[statusEdge]struct{} {
	out := make(map[statusEdge]struct{}, len(list))
	for _, e := range list {
		out[e] = struct{}{}
	}
	return out
}

// CanTransition reports whether docType may move from one status to another.
func CanTransition(docType DocumentType, from, to DocumentStatus) bool {
	table, ok := documentTransitions[docType]
	if !ok {
		return false
	}
	_, ok = table[statusEdge{from: from, to: to}]
	return ok
}

// AllowedTransitions lists the statuses reachable from the given one.
func AllowedTransitions(docType DocumentType, from DocumentStatus) []DocumentStatus {
	var out []DocumentStatus
	for _, candidate := range validDocumentStatuses {
		if CanTransition(docType, from, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// IsTerminal reports whether no further transition exists for the status.
func IsTerminal(docType DocumentType, status DocumentStatus) bool {
	return len(AllowedTransitions(docType, status)) == 0
}

// ValidStatusFor reports whether status is part of docType's lifecycle at all.
func ValidStatusFor(docType DocumentType, status DocumentStatus) bool {
	switch status {
	case DocumentStatusDraft, DocumentStatusSent, DocumentStatusCancelled:
		return docType.IsValid()
	case DocumentStatusAccepted, DocumentStatusRefused:
		return docType == DocumentTypeQuote
	case DocumentStatusPaid:
		return docType == DocumentTypeInvoice || docType == DocumentTypeCreditNote
	default:
		return false
	}
}
