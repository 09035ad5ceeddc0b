package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"clinicreport/internal"
	"clinicreport/internal/sources"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MailTable is one report table found in a mail, classified by its headers.
type MailTable struct {
	Table  sources.Table
	Kind   string
	Source string
	Origin string
}

type MailExtraction struct {
	Subject  string
	Tables   []MailTable
	Warnings []string
}

// ExtractTablesFromMailRaw reads xlsx attachments and HTML body tables.
// Unreadable attachments are reported as warnings, not errors.
func ExtractTablesFromMailRaw(raw []byte) (MailExtraction, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailExtraction{}, err
	}

	out := MailExtraction{Subject: env.GetHeader("Subject")}
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, att := range parts {
		name := strings.TrimSpace(att.FileName)
		if !isSpreadsheet(name, att.ContentType) {
			continue
		}
		if name == "" {
			name = "attachment.xlsx"
		}

		tables, err := sources.ReadXLSXSheets(att.Content)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		for _, t := range tables {
			out.Tables = append(out.Tables, MailTable{
				Table:  t,
				Kind:   sources.DetectKind(t),
				Source: internal.SourceMailAttachment,
				Origin: name,
			})
		}
	}

	if env.HTML != "" {
		tables, err := sources.ReadHTMLTables(env.HTML)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("html body: %v", err))
		}
		for _, t := range tables {
			out.Tables = append(out.Tables, MailTable{
				Table:  t,
				Kind:   sources.DetectKind(t),
				Source: internal.SourceMailHTMLTable,
				Origin: t.Name,
			})
		}
	}

	for _, e := range env.Errors {
		out.Warnings = append(out.Warnings, e.Error())
	}
	return out, nil
}

func isSpreadsheet(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return true
	}
	return strings.EqualFold(contentType, xlsxContentType)
}
