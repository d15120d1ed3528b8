package notionsync

import (
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/jomei/notionapi"
)

// Property names of the Notion databases.
const (
	PropEntryID       = "Entry ID"
	PropFileID        = "File ID"
	PropSummary       = "Summary"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropDirection     = "Direction"
	PropCategory      = "Category"
	PropAccount       = "Account"
	PropCounterparty  = "Counterparty"
	PropDescription   = "Description"
	PropPaymentMethod = "Payment Method"
	PropStatus        = "Status"
	PropNote          = "Note"
	PropParsingRunID  = "Parsing Run ID"
	PropImportedAt    = "Imported At"
	PropFilename      = "Filename"
	PropSourceType    = "Source Type"
	PropUploadedAt    = "Uploaded At"
	PropEntryCount    = "Entry Count"
	PropChecksum      = "Checksum"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// selectOption builds a select value. Notion rejects commas in option names.
func selectOption(s string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Select: notionapi.Option{Name: strings.ReplaceAll(s, ",", " ")},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}
}

// EntryToNotionProperties converts a stored entry to Notion properties. The
// entry id is the sync key; empty optional fields are omitted.
func EntryToNotionProperties(rec *store.EntryRecord) notionapi.Properties {
	summary := rec.TransactionSummary
	if summary == "" {
		summary = rec.Description
	}

	props := notionapi.Properties{
		PropSummary:   notionapi.TitleProperty{Title: richText(summary)},
		PropEntryID:   notionapi.RichTextProperty{RichText: richText(rec.EntryID)},
		PropAmount:    notionapi.NumberProperty{Number: rec.Amount.InexactFloat64()},
		PropDirection: selectOption(rec.Direction.Label()),
		PropCategory:  selectOption(rec.Category.Label()),
	}

	if rec.Date != nil {
		props[PropDate] = dateProperty(*rec.Date)
	}

	for name, value := range map[string]string{
		PropAccount:       rec.Account,
		PropPaymentMethod: rec.PaymentMethod,
		PropStatus:        rec.Status,
	} {
		if value != "" {
			props[name] = selectOption(value)
		}
	}

	for name, value := range map[string]string{
		PropCounterparty: rec.Counterparty,
		PropDescription:  rec.Description,
		PropNote:         rec.Note,
		PropFileID:       rec.FileID,
		PropParsingRunID: rec.ParsingRunID,
	} {
		if value != "" {
			props[name] = notionapi.RichTextProperty{RichText: richText(value)}
		}
	}

	if !rec.CreatedAt.IsZero() {
		props[PropImportedAt] = dateProperty(rec.CreatedAt)
	}

	return props
}

// BillFileToNotionProperties converts a bill file record to Notion
// properties keyed by its file id.
func BillFileToNotionProperties(f *domain.BillFile) notionapi.Properties {
	props := notionapi.Properties{
		PropFileID:     notionapi.TitleProperty{Title: richText(f.FileID)},
		PropFilename:   notionapi.RichTextProperty{RichText: richText(f.OriginalFilename)},
		PropSourceType: selectOption(f.SourceType),
		PropStatus:     selectOption(f.Status),
		PropEntryCount: notionapi.NumberProperty{Number: float64(f.EntryCount)},
	}

	if !f.UploadedAt.IsZero() {
		props[PropUploadedAt] = dateProperty(f.UploadedAt)
	}
	if f.Checksum != "" {
		props[PropChecksum] = notionapi.RichTextProperty{RichText: richText(f.Checksum)}
	}

	return props
}

// plainText returns the first text run of a title or rich text property.
func plainText(prop notionapi.Property) string {
	var runs []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		runs = p.Title
	case notionapi.TitleProperty:
		runs = p.Title
	case *notionapi.RichTextProperty:
		runs = p.RichText
	case notionapi.RichTextProperty:
		runs = p.RichText
	}
	if len(runs) == 0 {
		return ""
	}
	if runs[0].PlainText != "" {
		return runs[0].PlainText
	}
	if runs[0].Text != nil {
		return runs[0].Text.Content
	}
	return ""
}

// pageText returns the text of the named property, or "".
func pageText(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	return plainText(prop)
}

// pageDate returns the start of the named date property.
func pageDate(page notionapi.Page, name string) (time.Time, bool) {
	var obj *notionapi.DateObject
	switch p := page.Properties[name].(type) {
	case *notionapi.DateProperty:
		obj = p.Date
	case notionapi.DateProperty:
		obj = p.Date
	}
	if obj == nil || obj.Start == nil {
		return time.Time{}, false
	}
	return time.Time(*obj.Start), true
}
